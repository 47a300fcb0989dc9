// Package catalog owns the primary service/project configuration file: its
// schema, validation, atomic persistence, and pure upsert/remove helpers.
package catalog

import (
	"regexp"
	"time"
)

// Source identifies where a service definition came from.
type Source string

const (
	SourceConfig  Source = "config"
	SourceCompose Source = "compose"
)

// PortMode selects how a service's port is resolved at start.
type PortMode string

const (
	PortModeStatic   PortMode = "static"
	PortModeDetect   PortMode = "detect"
	PortModeRegistry PortMode = "registry"
)

// nameRe is the shared charset for service and project names.
var nameRe = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidName reports whether s is a legal service or project name.
func ValidName(s string) bool {
	return len(s) > 0 && nameRe.MatchString(s)
}

// Service is a single long-running shell command mapped to one
// multiplexer window.
type Service struct {
	Name          string            `json:"name"`
	Cwd           string            `json:"cwd"`
	Command       string            `json:"command"`
	Env           map[string]string `json:"env,omitempty"`
	Port          *int              `json:"port,omitempty"`
	PortMode      PortMode          `json:"portMode,omitempty"`
	DependsOn     []string          `json:"dependsOn,omitempty"`
	LastStartedAt *time.Time        `json:"lastStartedAt,omitempty"`
	Source        Source            `json:"source"`
	ProjectName   string            `json:"projectName,omitempty"`
	Monorepo      bool              `json:"monorepo,omitempty"`
	ComposeFile   string            `json:"composeFile,omitempty"`

	// Raw is the untouched source definition, kept only for read-only
	// display via GET /services/:name/config. It is never used by any
	// orchestration logic.
	Raw any `json:"-"`
}

// EffectivePortMode returns the service's port mode, defaulting to static.
func (s Service) EffectivePortMode() PortMode {
	if s.PortMode == "" {
		return PortModeStatic
	}
	return s.PortMode
}

// Project is a registered repository whose compose file contributes
// services.
type Project struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Monorepo bool   `json:"monorepo,omitempty"`
}

// Catalog is the service list plus registered projects. As read from and
// written to the configuration file it holds only hand-authored,
// config-sourced services; the Catalog returned by Merge also carries the
// compose-sourced services layered on top.
type Catalog struct {
	Version            int       `json:"version"`
	Services           []Service `json:"services"`
	RegisteredProjects []Project `json:"registeredProjects,omitempty"`
}

// FindService returns the service with the given name, if present.
func (c Catalog) FindService(name string) (Service, bool) {
	for _, s := range c.Services {
		if s.Name == name {
			return s, true
		}
	}
	return Service{}, false
}

// FindProject returns the project with the given name, if present.
func (c Catalog) FindProject(name string) (Project, bool) {
	for _, p := range c.RegisteredProjects {
		if p.Name == name {
			return p, true
		}
	}
	return Project{}, false
}
