package catalog

import (
	"github.com/devservers/devserversd/internal/apierror"
)

// Validate checks a catalog read from disk for schema and name-uniqueness
// errors. It does not check cross-service invariants that require the
// compose-sourced services too (dependency targets, cycles) — that is the
// dependency graph's job once the full merged catalog exists.
func Validate(c Catalog) error {
	if c.Version != 0 && c.Version != 1 {
		return apierror.Validationf("catalog: unsupported version %d", c.Version)
	}

	seen := make(map[string]bool, len(c.Services))
	for i, s := range c.Services {
		if err := validateService(i, s); err != nil {
			return err
		}
		if seen[s.Name] {
			return apierror.Validationf("catalog: duplicate service name %q", s.Name)
		}
		seen[s.Name] = true
	}

	seenProjects := make(map[string]bool, len(c.RegisteredProjects))
	for i, p := range c.RegisteredProjects {
		if !ValidName(p.Name) {
			return apierror.Validationf("catalog: registeredProjects[%d]: invalid name %q", i, p.Name)
		}
		if p.Path == "" {
			return apierror.Validationf("catalog: registeredProjects[%d]: 'path' is required", i)
		}
		if seenProjects[p.Name] {
			return apierror.Validationf("catalog: duplicate project name %q", p.Name)
		}
		seenProjects[p.Name] = true
	}

	return nil
}

func validateService(i int, s Service) error {
	if !ValidName(s.Name) {
		return apierror.Validationf("catalog: services[%d]: invalid name %q (must match ^[A-Za-z0-9._-]+$)", i, s.Name)
	}
	if s.Cwd == "" {
		return apierror.Validationf("catalog: service %q: 'cwd' is required", s.Name)
	}
	if s.Command == "" {
		return apierror.Validationf("catalog: service %q: 'command' is required", s.Name)
	}
	if s.Port != nil && (*s.Port < 1 || *s.Port > 65535) {
		return apierror.Validationf("catalog: service %q: port %d out of range 1-65535", s.Name, *s.Port)
	}
	switch s.EffectivePortMode() {
	case PortModeStatic, PortModeDetect, PortModeRegistry:
	default:
		return apierror.Validationf("catalog: service %q: invalid portMode %q", s.Name, s.PortMode)
	}

	seenDeps := make(map[string]bool, len(s.DependsOn))
	for _, d := range s.DependsOn {
		if d == s.Name {
			return apierror.Validationf("catalog: service %q: self-dependency", s.Name)
		}
		if seenDeps[d] {
			return apierror.Validationf("catalog: service %q: duplicate dependency %q", s.Name, d)
		}
		seenDeps[d] = true
	}
	if s.Source != "" && s.Source != SourceConfig && s.Source != SourceCompose {
		return apierror.Validationf("catalog: service %q: invalid source %q", s.Name, s.Source)
	}
	return nil
}
