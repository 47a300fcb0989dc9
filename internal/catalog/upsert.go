package catalog

// UpsertService returns a new catalog with svc inserted or replacing the
// service of the same name. If svc.LastStartedAt is unset and a prior
// service of the same name had one, the prior value is preserved.
func UpsertService(c Catalog, svc Service) Catalog {
	out := c
	out.Services = append([]Service(nil), c.Services...)

	for i, existing := range out.Services {
		if existing.Name == svc.Name {
			if svc.LastStartedAt == nil {
				svc.LastStartedAt = existing.LastStartedAt
			}
			out.Services[i] = svc
			return out
		}
	}
	out.Services = append(out.Services, svc)
	return out
}

// RemoveService returns a new catalog with the named service removed. A
// missing name is a no-op.
func RemoveService(c Catalog, name string) Catalog {
	out := c
	out.Services = nil
	for _, s := range c.Services {
		if s.Name != name {
			out.Services = append(out.Services, s)
		}
	}
	return out
}

// UpsertProject returns a new catalog with the project inserted or
// replacing the project of the same name.
func UpsertProject(c Catalog, p Project) Catalog {
	out := c
	out.RegisteredProjects = append([]Project(nil), c.RegisteredProjects...)

	for i, existing := range out.RegisteredProjects {
		if existing.Name == p.Name {
			out.RegisteredProjects[i] = p
			return out
		}
	}
	out.RegisteredProjects = append(out.RegisteredProjects, p)
	return out
}

// RemoveProject returns a new catalog with the named project removed.
func RemoveProject(c Catalog, name string) Catalog {
	out := c
	out.RegisteredProjects = nil
	for _, p := range c.RegisteredProjects {
		if p.Name != name {
			out.RegisteredProjects = append(out.RegisteredProjects, p)
		}
	}
	return out
}
