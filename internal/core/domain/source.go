package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// SourceKind distinguishes where application code comes from.
type SourceKind string

const (
	SourceGit   SourceKind = "git"
	SourceLocal SourceKind = "local"
)

// Source describes the origin of an application's code.
type Source struct {
	Kind   SourceKind `json:"kind"`
	URL    string     `json:"url,omitempty"`    // git remote, set when Kind == git
	Branch string     `json:"branch,omitempty"` // optional git branch
	Path   string     `json:"path,omitempty"`   // absolute path, set when Kind == local
}

func (s Source) String() string {
	if s.Kind == SourceLocal {
		return s.Path
	}
	if s.Branch != "" {
		return s.URL + "#" + s.Branch
	}
	return s.URL
}

var (
	sshGitRe    = regexp.MustCompile(`^git@[\w.-]+:[\w.-]+/[\w.-]+(\.git)?$`)
	httpsGitRe  = regexp.MustCompile(`^https://[\w.-]+/[\w.-]+/[\w.-]+(\.git)?/?$`)
	shorthandRe = regexp.MustCompile(`^[\w.-]+/[\w.-]+$`)
)

// IsGitURL reports whether raw looks like an SSH or HTTPS git remote.
func IsGitURL(raw string) bool {
	return sshGitRe.MatchString(raw) || httpsGitRe.MatchString(raw)
}

// IsGitHubShorthand reports whether raw is a bare "user/repo" reference.
func IsGitHubShorthand(raw string) bool {
	return shorthandRe.MatchString(raw) && !strings.HasPrefix(raw, "/")
}

// IsLocalPath reports whether raw names a filesystem location rather than a remote.
func IsLocalPath(raw string) bool {
	return strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "./") || strings.HasPrefix(raw, "../") || raw == "."
}

// ParseSource turns a user-supplied source string into a Source descriptor.
// Accepted forms: SSH git URL, HTTPS git URL, GitHub "user/repo" shorthand
// (expanded to an HTTPS URL), or a local path. Branch applies to git sources
// only.
func ParseSource(raw, branch string) (Source, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Source{}, &ValidationError{Field: "source", Reason: "source is required"}
	}

	switch {
	case IsGitURL(raw):
		return Source{Kind: SourceGit, URL: raw, Branch: branch}, nil
	case IsLocalPath(raw):
		if branch != "" {
			return Source{}, &ValidationError{Field: "branch", Reason: "branch is only valid for git sources"}
		}
		return Source{Kind: SourceLocal, Path: raw}, nil
	case IsGitHubShorthand(raw):
		return Source{Kind: SourceGit, URL: fmt.Sprintf("https://github.com/%s", raw), Branch: branch}, nil
	default:
		return Source{}, &ValidationError{Field: "source", Reason: fmt.Sprintf("unrecognized source %q: expected a git URL, user/repo shorthand, or local path", raw)}
	}
}
