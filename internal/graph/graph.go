// Package graph builds and validates the dependency graph over a merged
// service catalog, and provides the traversal primitives (transitive
// dependency/dependent sets, topological sort) the orchestrator drives
// start/stop/restart with.
package graph

import (
	"fmt"
	"strings"

	"github.com/devservers/devserversd/internal/apierror"
	"github.com/devservers/devserversd/internal/catalog"
)

// Graph is an immutable view over a validated, merged service catalog.
type Graph struct {
	services map[string]catalog.Service
	deps     map[string][]string // name -> deps, original declared order
	dependents map[string][]string // name -> names that depend on it
	order    []string             // catalog insertion order
}

// Build validates services and constructs a Graph. Validation reports, in
// priority order: missing dependency targets, self-dependency, duplicate
// dependency entries, then cycles (with the offending path).
func Build(services []catalog.Service) (*Graph, error) {
	byName := make(map[string]catalog.Service, len(services))
	order := make([]string, 0, len(services))
	for _, s := range services {
		byName[s.Name] = s
		order = append(order, s.Name)
	}

	// Missing dependency targets, then self-dependency, then duplicate
	// entries, each checked across every service before the next.
	for _, s := range services {
		for _, d := range s.DependsOn {
			if _, ok := byName[d]; !ok {
				return nil, apierror.Validationf("dependency graph: service %q depends on unknown service %q", s.Name, d)
			}
		}
	}
	for _, s := range services {
		for _, d := range s.DependsOn {
			if d == s.Name {
				return nil, apierror.Validationf("dependency graph: service %q depends on itself", s.Name)
			}
		}
	}
	for _, s := range services {
		seen := make(map[string]bool, len(s.DependsOn))
		for _, d := range s.DependsOn {
			if seen[d] {
				return nil, apierror.Validationf("dependency graph: service %q has duplicate dependency %q", s.Name, d)
			}
			seen[d] = true
		}
	}

	g := &Graph{
		services:   byName,
		deps:       make(map[string][]string, len(services)),
		dependents: make(map[string][]string, len(services)),
		order:      order,
	}
	for _, s := range services {
		g.deps[s.Name] = append([]string(nil), s.DependsOn...)
		for _, d := range s.DependsOn {
			g.dependents[d] = append(g.dependents[d], s.Name)
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, apierror.Validationf("dependency graph: cycle detected: %s", strings.Join(cycle, " -> "))
	}

	return g, nil
}

// findCycle returns the first cycle found as a path of names (with the
// start name repeated at the end), or nil if the graph is acyclic.
func (g *Graph) findCycle() []string {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current DFS stack
		black = 2 // fully explored
	)
	color := make(map[string]int, len(g.order))
	var path []string

	var visit func(name string) []string
	visit = func(name string) []string {
		color[name] = gray
		path = append(path, name)
		for _, dep := range g.deps[name] {
			switch color[dep] {
			case gray:
				// Found the back edge; trim path to the cycle start.
				start := 0
				for i, n := range path {
					if n == dep {
						start = i
						break
					}
				}
				cycle := append([]string(nil), path[start:]...)
				return append(cycle, dep)
			case white:
				if c := visit(dep); c != nil {
					return c
				}
			}
		}
		color[name] = black
		path = path[:len(path)-1]
		return nil
	}

	for _, name := range g.order {
		if color[name] == white {
			if c := visit(name); c != nil {
				return c
			}
		}
	}
	return nil
}

// Service returns the named service and whether it exists in the graph.
func (g *Graph) Service(name string) (catalog.Service, bool) {
	s, ok := g.services[name]
	return s, ok
}

// Names returns every service name in catalog insertion order.
func (g *Graph) Names() []string {
	return append([]string(nil), g.order...)
}

// CollectDependencies returns the transitive closure of name's
// dependencies, including name itself.
func CollectDependencies(g *Graph, name string) (map[string]bool, error) {
	if _, ok := g.services[name]; !ok {
		return nil, apierror.NotFoundf("service %q not found", name)
	}
	set := map[string]bool{}
	var walk func(string)
	walk = func(n string) {
		if set[n] {
			return
		}
		set[n] = true
		for _, d := range g.deps[n] {
			walk(d)
		}
	}
	walk(name)
	return set, nil
}

// CollectDependents returns the transitive closure of services that
// (directly or indirectly) depend on name, including name itself.
func CollectDependents(g *Graph, name string) (map[string]bool, error) {
	if _, ok := g.services[name]; !ok {
		return nil, apierror.NotFoundf("service %q not found", name)
	}
	set := map[string]bool{}
	var walk func(string)
	walk = func(n string) {
		if set[n] {
			return
		}
		set[n] = true
		for _, d := range g.dependents[n] {
			walk(d)
		}
	}
	walk(name)
	return set, nil
}

// TopoSort returns the members of subset in deps-first order, using the
// graph's catalog insertion order as a stable tiebreak among services
// with no ordering relationship.
func TopoSort(g *Graph, subset map[string]bool) []string {
	visited := make(map[string]bool, len(subset))
	var out []string

	var visit func(string)
	visit = func(n string) {
		if visited[n] || !subset[n] {
			return
		}
		visited[n] = true
		for _, d := range g.deps[n] {
			if subset[d] {
				visit(d)
			}
		}
		out = append(out, n)
	}

	for _, name := range g.order {
		visit(name)
	}
	return out
}

// String is used in error messages and debug logging.
func (g *Graph) String() string {
	return fmt.Sprintf("graph(%d services)", len(g.order))
}
