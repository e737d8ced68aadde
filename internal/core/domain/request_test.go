package domain_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Perkybeet/wam/internal/core/domain"
)

func TestValidateDomainName_Valid(t *testing.T) {
	for _, name := range []string{
		"example.com",
		"app.example.com",
		"my-app.example.co.uk",
		"a1.b2.example.io",
	} {
		assert.NoError(t, domain.ValidateDomainName(name), name)
	}
}

func TestValidateDomainName_Invalid(t *testing.T) {
	cases := map[string]string{
		"":                    "empty",
		"https://example.com": "scheme",
		"example.com:8080":    "port",
		"example.com/path":    "path",
		"my_app.example.com":  "underscore",
		"has space.com":       "whitespace",
		"localhost":           "single label",
		"example.c":           "short tld",
		strings.Repeat("a", 64) + ".com": "long label",
	}
	for name, why := range cases {
		err := domain.ValidateDomainName(name)
		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr, "%s (%s) should be rejected", name, why)
	}
}

func TestNormalizeDomain(t *testing.T) {
	assert.Equal(t, "app.example.com", domain.NormalizeDomain("  App.Example.COM "))
}

func TestCreateRequest_Validate(t *testing.T) {
	req := domain.CreateRequest{
		Domain: "App.Example.com",
		Source: "user/repo",
		Port:   8080,
	}
	require.NoError(t, req.Validate())
	assert.Equal(t, "app.example.com", req.Domain, "domain is normalized in place")
}

func TestCreateRequest_Validate_PortRange(t *testing.T) {
	req := domain.CreateRequest{Domain: "app.example.com", Source: "user/repo", Port: 70000}
	var verr *domain.ValidationError
	require.ErrorAs(t, req.Validate(), &verr)

	req.Port = -1
	require.ErrorAs(t, req.Validate(), &verr)
}

func TestCreateRequest_Validate_UnknownType(t *testing.T) {
	req := domain.CreateRequest{Domain: "app.example.com", Source: "user/repo", AppType: "rails"}
	var verr *domain.ValidationError
	require.ErrorAs(t, req.Validate(), &verr)
}

func TestCreateRequest_Validate_CustomNeedsStartCommand(t *testing.T) {
	req := domain.CreateRequest{Domain: "app.example.com", Source: "user/repo", AppType: domain.AppTypeCustom}
	var verr *domain.ValidationError
	require.ErrorAs(t, req.Validate(), &verr)

	req.StartCommand = "./run-server"
	require.NoError(t, req.Validate())
}

func TestCreateRequest_Validate_SSLNeedsEmail(t *testing.T) {
	req := domain.CreateRequest{Domain: "app.example.com", Source: "user/repo", SSL: true}
	var verr *domain.ValidationError
	require.ErrorAs(t, req.Validate(), &verr)

	req.Email = "ops@example.com"
	require.NoError(t, req.Validate())
}

func TestUpdateRequest_Validate(t *testing.T) {
	req := domain.UpdateRequest{Domain: "app.example.com"}
	require.NoError(t, req.Validate())

	req = domain.UpdateRequest{Domain: "app.example.com", Source: "nonsense source"}
	var verr *domain.ValidationError
	require.ErrorAs(t, req.Validate(), &verr)
}
