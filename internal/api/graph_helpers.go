package api

import (
	"github.com/devservers/devserversd/internal/catalog"
	"github.com/devservers/devserversd/internal/graph"
)

// buildGraphChecked validates that a prospective catalog still forms a
// legal dependency graph, without needing the caller to depend on the
// graph package's internal types.
func buildGraphChecked(c catalog.Catalog) (*graph.Graph, error) {
	return graph.Build(c.Services)
}
