package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// rawService mirrors Service's JSON shape exactly so that
// DisallowUnknownFields can catch unknown service keys, per spec: unknown
// top-level catalog keys are ignored, but unknown service keys are a
// schema violation.
type rawService struct {
	Name          string            `json:"name"`
	Cwd           string            `json:"cwd"`
	Command       string            `json:"command"`
	Env           map[string]string `json:"env,omitempty"`
	Port          *int              `json:"port,omitempty"`
	PortMode      PortMode          `json:"portMode,omitempty"`
	DependsOn     []string          `json:"dependsOn,omitempty"`
	LastStartedAt *time.Time        `json:"lastStartedAt,omitempty"`
	Source        Source            `json:"source,omitempty"`
	ProjectName   string            `json:"projectName,omitempty"`
	Monorepo      bool              `json:"monorepo,omitempty"`
	ComposeFile   string            `json:"composeFile,omitempty"`
}

func (r rawService) toService() (Service, error) {
	src := r.Source
	if src == "" {
		src = SourceConfig
	}
	return Service{
		Name:          r.Name,
		Cwd:           r.Cwd,
		Command:       r.Command,
		Env:           r.Env,
		Port:          r.Port,
		PortMode:      r.PortMode,
		DependsOn:     r.DependsOn,
		LastStartedAt: r.LastStartedAt,
		Source:        src,
		ProjectName:   r.ProjectName,
		Monorepo:      r.Monorepo,
		ComposeFile:   r.ComposeFile,
		Raw:           r,
	}, nil
}

// unmarshalStrict decodes data into a document struct shaped like the
// catalog file, rejecting unknown service keys while tolerating unknown
// top-level keys (the top-level struct below intentionally omits a
// catch-all field, and DisallowUnknownFields is applied only within the
// nested decode of the services array).
func unmarshalStrict(data []byte) (int, []rawService, []Project, error) {
	var loose struct {
		Version            int               `json:"version"`
		Services           []json.RawMessage `json:"services"`
		RegisteredProjects []Project         `json:"registeredProjects"`
	}
	if err := json.Unmarshal(data, &loose); err != nil {
		return 0, nil, nil, fmt.Errorf("invalid JSON: %w", err)
	}

	services := make([]rawService, 0, len(loose.Services))
	for i, raw := range loose.Services {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		var rs rawService
		if err := dec.Decode(&rs); err != nil {
			return 0, nil, nil, fmt.Errorf("services[%d]: %w", i, err)
		}
		services = append(services, rs)
	}
	return loose.Version, services, loose.RegisteredProjects, nil
}
