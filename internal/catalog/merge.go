package catalog

import "github.com/devservers/devserversd/internal/apierror"

// Merge combines config-sourced services from c with compose-sourced
// services, rejecting any name collision between the two sets as a
// fatal catalog error. Projects are taken from c alone.
func Merge(c Catalog, composeServices []Service) (Catalog, error) {
	seen := make(map[string]bool, len(c.Services))
	for _, s := range c.Services {
		seen[s.Name] = true
	}

	merged := c
	merged.Services = append([]Service(nil), c.Services...)
	for _, cs := range composeServices {
		if seen[cs.Name] {
			return Catalog{}, apierror.Validationf("catalog: service %q is defined both in configuration and by a compose file", cs.Name)
		}
		seen[cs.Name] = true
		merged.Services = append(merged.Services, cs)
	}
	return merged, nil
}
