package api

import (
	"time"

	"github.com/devservers/devserversd/internal/catalog"
	"github.com/devservers/devserversd/internal/supervisor"
)

// ServiceInfo is the per-service payload returned by GET /services: a
// service's declared fields plus its observed runtime status and
// resolved port.
type ServiceInfo struct {
	Name          string            `json:"name"`
	Cwd           string            `json:"cwd"`
	Command       string            `json:"command"`
	Env           map[string]string `json:"env,omitempty"`
	Port          *int              `json:"port,omitempty"`
	PortMode      catalog.PortMode  `json:"portMode"`
	DependsOn     []string          `json:"dependsOn,omitempty"`
	LastStartedAt *time.Time        `json:"lastStartedAt,omitempty"`
	Source        catalog.Source    `json:"source"`
	ProjectName   string            `json:"projectName,omitempty"`
	Monorepo      bool              `json:"monorepo,omitempty"`
	Status        supervisor.Status `json:"status"`
}

// ServiceConfigResponse backs GET /services/:name/config.
type ServiceConfigResponse struct {
	Source      catalog.Source `json:"source"`
	ServiceName string         `json:"serviceName"`
	ProjectName string         `json:"projectName,omitempty"`
	Path        string         `json:"path"`
	Definition  any            `json:"definition"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type errorResponse struct {
	Error string `json:"error"`
}
