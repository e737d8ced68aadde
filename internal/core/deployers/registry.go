// Package deployers holds the closed set of application-type descriptors and
// the ordered registry used to detect which one a source tree belongs to.
package deployers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Perkybeet/wam/internal/core/domain"
)

// Deployer bundles the detection predicate and default commands for one
// application type.
type Deployer struct {
	Type            domain.AppType
	DefaultPort     int
	InstallCommand  string
	BuildCommand    string
	StartCommand    string
	HealthCheckPath string

	// Detect inspects a fetched source tree and reports whether this
	// deployer should handle it.
	Detect func(root string) bool
}

// Registry is an ordered list of deployers. Detection iterates in
// registration order and the first match wins; the order is therefore part of
// the registry's contract and must stay deterministic.
type Registry struct {
	deployers []Deployer
	byType    map[domain.AppType]Deployer
}

// NewRegistry builds a registry from the given deployers, preserving order.
func NewRegistry(ds ...Deployer) *Registry {
	r := &Registry{byType: make(map[domain.AppType]Deployer, len(ds))}
	for _, d := range ds {
		r.deployers = append(r.deployers, d)
		r.byType[d.Type] = d
	}
	return r
}

// Detect returns the first registered deployer whose predicate matches root.
func (r *Registry) Detect(root string) (Deployer, error) {
	for _, d := range r.deployers {
		if d.Detect != nil && d.Detect(root) {
			return d, nil
		}
	}
	return Deployer{}, fmt.Errorf("no registered deployer matches the source tree at %s", root)
}

// Lookup returns the deployer registered for an explicitly requested type.
func (r *Registry) Lookup(t domain.AppType) (Deployer, error) {
	d, ok := r.byType[t]
	if !ok {
		return Deployer{}, fmt.Errorf("no deployer registered for app type %q", t)
	}
	return d, nil
}

// Types returns the registered types in registration order.
func (r *Registry) Types() []domain.AppType {
	out := make([]domain.AppType, 0, len(r.deployers))
	for _, d := range r.deployers {
		out = append(out, d.Type)
	}
	return out
}

func fileExists(root string, names ...string) bool {
	for _, name := range names {
		if _, err := os.Stat(filepath.Join(root, name)); err == nil {
			return true
		}
	}
	return false
}

func packageJSONHasDep(root, dep string) bool {
	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		return false
	}
	// A substring check is enough here: a quoted dependency name appears
	// verbatim in package.json regardless of which dependency block holds it.
	return strings.Contains(string(data), `"`+dep+`"`)
}

// NewDefaultRegistry wires the built-in deployers. Order matters: the more
// specific node frameworks are registered before plain nodejs so a Next.js or
// Vite tree is never claimed by the generic deployer, and static is last as
// the catch-all for plain HTML trees. The custom type never auto-detects; it
// is only reachable by explicit request.
func NewDefaultRegistry() *Registry {
	return NewRegistry(
		Deployer{
			Type:            domain.AppTypeNextJS,
			DefaultPort:     3000,
			InstallCommand:  "npm install",
			BuildCommand:    "npm run build",
			StartCommand:    "npm run start",
			HealthCheckPath: "/",
			Detect: func(root string) bool {
				return fileExists(root, "next.config.js", "next.config.mjs", "next.config.ts") ||
					packageJSONHasDep(root, "next")
			},
		},
		Deployer{
			Type:            domain.AppTypeVite,
			DefaultPort:     5173,
			InstallCommand:  "npm install",
			BuildCommand:    "npm run build",
			StartCommand:    "npx serve -s dist -l {port}",
			HealthCheckPath: "/",
			Detect: func(root string) bool {
				return fileExists(root, "vite.config.js", "vite.config.mjs", "vite.config.ts") ||
					packageJSONHasDep(root, "vite")
			},
		},
		Deployer{
			Type:            domain.AppTypeNodeJS,
			DefaultPort:     3000,
			InstallCommand:  "npm install",
			BuildCommand:    "",
			StartCommand:    "npm start",
			HealthCheckPath: "/",
			Detect: func(root string) bool {
				return fileExists(root, "package.json")
			},
		},
		Deployer{
			Type:            domain.AppTypePython,
			DefaultPort:     8000,
			InstallCommand:  "pip install -r requirements.txt",
			BuildCommand:    "",
			StartCommand:    "python -m uvicorn main:app --host 127.0.0.1 --port {port}",
			HealthCheckPath: "/",
			Detect: func(root string) bool {
				return fileExists(root, "requirements.txt", "pyproject.toml")
			},
		},
		Deployer{
			Type:            domain.AppTypeStatic,
			DefaultPort:     8080,
			InstallCommand:  "",
			BuildCommand:    "",
			StartCommand:    "python3 -m http.server {port}",
			HealthCheckPath: "/",
			Detect: func(root string) bool {
				return fileExists(root, "index.html")
			},
		},
		Deployer{
			Type:            domain.AppTypeCustom,
			DefaultPort:     0,
			HealthCheckPath: "/",
			Detect:          func(root string) bool { return false },
		},
	)
}
