package domain

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CreateRequest is the validated input to the create pipeline.
type CreateRequest struct {
	Domain  string  `validate:"required,fqdn"`
	Source  string  `validate:"required"`
	Branch  string  `validate:"omitempty"`
	AppType AppType `validate:"omitempty"` // empty means detect
	Port    int     `validate:"omitempty,min=1,max=65535"`
	SSL     bool
	Email   string `validate:"omitempty,email"` // ACME account email, required when SSL

	InstallCommand  string
	BuildCommand    string
	StartCommand    string
	HealthCheckPath string
	EnvVars         map[string]string
}

// UpdateRequest is the validated input to the update pipeline. Zero values
// mean "keep the current setting".
type UpdateRequest struct {
	Domain string `validate:"required,fqdn"`
	Source string `validate:"omitempty"`
	Branch string `validate:"omitempty"`

	BuildCommand string
	StartCommand string
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// NormalizeDomain lowercases and trims a user-supplied domain name.
func NormalizeDomain(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ValidateDomainName applies the naming rules the webserver and certificate
// tooling can actually handle: a plain FQDN, no scheme, port, path,
// underscore, or whitespace, each label at most 63 characters.
func ValidateDomainName(name string) error {
	if name == "" {
		return &ValidationError{Field: "domain", Reason: "domain is required"}
	}
	if strings.ContainsAny(name, " \t") {
		return &ValidationError{Field: "domain", Reason: "domain must not contain whitespace"}
	}
	if strings.Contains(name, "://") || strings.Contains(name, "/") {
		return &ValidationError{Field: "domain", Reason: "domain must not contain a scheme or path"}
	}
	if strings.Contains(name, ":") {
		return &ValidationError{Field: "domain", Reason: "domain must not contain a port"}
	}
	if strings.Contains(name, "_") {
		return &ValidationError{Field: "domain", Reason: "domain must not contain underscores"}
	}
	labels := strings.Split(name, ".")
	if len(labels) < 2 {
		return &ValidationError{Field: "domain", Reason: "domain must have at least two labels"}
	}
	for _, label := range labels {
		if label == "" {
			return &ValidationError{Field: "domain", Reason: "domain contains an empty label"}
		}
		if len(label) > 63 {
			return &ValidationError{Field: "domain", Reason: fmt.Sprintf("label %q exceeds 63 characters", label)}
		}
	}
	if len(labels[len(labels)-1]) < 2 {
		return &ValidationError{Field: "domain", Reason: "top-level domain must be at least 2 characters"}
	}
	if err := validate.Var(name, "fqdn"); err != nil {
		return &ValidationError{Field: "domain", Reason: fmt.Sprintf("%q is not a valid domain name", name)}
	}
	return nil
}

// Validate normalizes and checks the request. Returns a ValidationError on
// the first problem found; no state has been touched at this point.
func (r *CreateRequest) Validate() error {
	r.Domain = NormalizeDomain(r.Domain)
	if err := ValidateDomainName(r.Domain); err != nil {
		return err
	}
	if err := validate.Struct(r); err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	if r.AppType != "" && !r.AppType.IsValid() {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown app type %q", r.AppType)}
	}
	if r.AppType == AppTypeCustom && r.StartCommand == "" {
		return &ValidationError{Field: "start_command", Reason: "custom apps must supply a start command"}
	}
	if r.SSL && r.Email == "" {
		return &ValidationError{Field: "email", Reason: "an account email is required to request certificates"}
	}
	if _, err := ParseSource(r.Source, r.Branch); err != nil {
		return err
	}
	return nil
}

// Validate normalizes and checks the update request.
func (r *UpdateRequest) Validate() error {
	r.Domain = NormalizeDomain(r.Domain)
	if err := ValidateDomainName(r.Domain); err != nil {
		return err
	}
	if err := validate.Struct(r); err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	if r.Source != "" {
		if _, err := ParseSource(r.Source, r.Branch); err != nil {
			return err
		}
	}
	return nil
}
