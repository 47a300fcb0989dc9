package api

import (
	"net/http"

	"github.com/devservers/devserversd/internal/apierror"
	"github.com/devservers/devserversd/internal/catalog"
	"github.com/devservers/devserversd/internal/supervisor"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleListServices(c *gin.Context) {
	snap, err := s.snapshot()
	if err != nil {
		c.Error(err)
		return
	}
	s.syncCompose(snap)

	live := make(map[string]bool, len(snap.Services))
	for _, svc := range snap.Services {
		live[svc.Name] = true
	}
	s.runtime.prune(live)

	running := 0
	infos := make([]ServiceInfo, 0, len(snap.Services))
	for _, svc := range snap.Services {
		status := s.Supervisor.GetStatus(c.Request.Context(), svc.Name)
		if status == supervisor.StatusRunning {
			running++
		}
		infos = append(infos, ServiceInfo{
			Name:          svc.Name,
			Cwd:           svc.Cwd,
			Command:       svc.Command,
			Env:           svc.Env,
			Port:          s.resolvedPortForDisplay(svc),
			PortMode:      svc.EffectivePortMode(),
			DependsOn:     svc.DependsOn,
			LastStartedAt: s.lastStartedAtForDisplay(svc),
			Source:        svc.Source,
			ProjectName:   svc.ProjectName,
			Monorepo:      svc.Monorepo,
			Status:        status,
		})
	}
	s.Metrics.ServicesRunning.Set(float64(running))

	c.JSON(http.StatusOK, gin.H{"services": infos})
}

func (s *Server) handleServiceConfig(c *gin.Context) {
	name := c.Param("name")
	snap, err := s.snapshot()
	if err != nil {
		c.Error(err)
		return
	}
	s.syncCompose(snap)

	svc, ok := snap.FindService(name)
	if !ok {
		c.Error(apierror.NotFoundf("service %q not found", name))
		return
	}

	path := s.ConfigPath
	if svc.Source == catalog.SourceCompose {
		path = svc.ComposeFile
	}

	c.JSON(http.StatusOK, ServiceConfigResponse{
		Source:      svc.Source,
		ServiceName: svc.Name,
		ProjectName: svc.ProjectName,
		Path:        path,
		Definition:  definitionOrSelf(svc),
	})
}

func definitionOrSelf(svc catalog.Service) any {
	if svc.Raw != nil {
		return svc.Raw
	}
	return svc
}

type upsertServiceRequest struct {
	Name      string            `json:"name"`
	Cwd       string            `json:"cwd"`
	Command   string            `json:"command"`
	Env       map[string]string `json:"env,omitempty"`
	Port      *int              `json:"port,omitempty"`
	PortMode  catalog.PortMode  `json:"portMode,omitempty"`
	DependsOn []string          `json:"dependsOn,omitempty"`
}

func (req upsertServiceRequest) toService() catalog.Service {
	return catalog.Service{
		Name:      req.Name,
		Cwd:       req.Cwd,
		Command:   req.Command,
		Env:       req.Env,
		Port:      req.Port,
		PortMode:  req.PortMode,
		DependsOn: req.DependsOn,
		Source:    catalog.SourceConfig,
	}
}

func (s *Server) handleUpsertService(c *gin.Context) {
	var req upsertServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apierror.Validationf("invalid request body: %v", err))
		return
	}
	s.upsertConfigService(c, req)
}

func (s *Server) handleUpsertServiceNamed(c *gin.Context) {
	name := c.Param("name")
	var req upsertServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apierror.Validationf("invalid request body: %v", err))
		return
	}
	if req.Name != "" && req.Name != name {
		c.Error(apierror.Validationf("body.name %q does not match URL name %q", req.Name, name))
		return
	}
	req.Name = name
	s.upsertConfigService(c, req)
}

func (s *Server) upsertConfigService(c *gin.Context, req upsertServiceRequest) {
	cat, err := catalog.Read(s.ConfigPath)
	if err != nil {
		c.Error(err)
		return
	}
	s.syncCompose(cat)

	if s.Compose != nil {
		for _, cs := range s.Compose.Services() {
			if cs.Name == req.Name {
				c.Error(apierror.Conflictf("service %q is managed by a compose file and cannot be edited via the API", req.Name))
				return
			}
		}
	}

	next := catalog.UpsertService(cat, req.toService())
	merged, err := s.mergedFor(next)
	if err != nil {
		c.Error(err)
		return
	}
	if _, err := buildGraphChecked(merged); err != nil {
		c.Error(err)
		return
	}
	if err := catalog.Write(s.ConfigPath, next); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleDeleteService(c *gin.Context) {
	name := c.Param("name")
	cat, err := catalog.Read(s.ConfigPath)
	if err != nil {
		c.Error(err)
		return
	}
	s.syncCompose(cat)

	if s.Compose != nil {
		for _, cs := range s.Compose.Services() {
			if cs.Name == name {
				c.Error(apierror.Conflictf("service %q is managed by a compose file and cannot be removed via the API", name))
				return
			}
		}
	}
	if _, ok := cat.FindService(name); !ok {
		c.Error(apierror.NotFoundf("service %q not found", name))
		return
	}

	next := catalog.RemoveService(cat, name)
	if err := catalog.Write(s.ConfigPath, next); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, okResponse{OK: true})
}

func (s *Server) mergedFor(c catalog.Catalog) (catalog.Catalog, error) {
	var composeServices []catalog.Service
	if s.Compose != nil {
		composeServices = s.Compose.Services()
	}
	return catalog.Merge(c, composeServices)
}

func (s *Server) handleStart(c *gin.Context) {
	name := c.Param("name")
	if err := s.Orchestrator.Start(c.Request.Context(), name); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleStop(c *gin.Context) {
	name := c.Param("name")
	if err := s.Orchestrator.Stop(c.Request.Context(), name); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleRestart(c *gin.Context) {
	name := c.Param("name")
	if err := s.Orchestrator.Restart(c.Request.Context(), name); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleListProjects(c *gin.Context) {
	cat, err := catalog.Read(s.ConfigPath)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": cat.RegisteredProjects})
}

func (s *Server) handleUpsertProject(c *gin.Context) {
	var req catalog.Project
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apierror.Validationf("invalid request body: %v", err))
		return
	}
	cat, err := catalog.Read(s.ConfigPath)
	if err != nil {
		c.Error(err)
		return
	}
	next := catalog.UpsertProject(cat, req)
	if err := catalog.Write(s.ConfigPath, next); err != nil {
		c.Error(err)
		return
	}
	s.syncCompose(next)
	c.JSON(http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleDeleteProject(c *gin.Context) {
	name := c.Param("name")
	cat, err := catalog.Read(s.ConfigPath)
	if err != nil {
		c.Error(err)
		return
	}
	if _, ok := cat.FindProject(name); !ok {
		c.Error(apierror.NotFoundf("project %q not found", name))
		return
	}
	next := catalog.RemoveProject(cat, name)
	if err := catalog.Write(s.ConfigPath, next); err != nil {
		c.Error(err)
		return
	}
	s.syncCompose(next)
	c.JSON(http.StatusOK, okResponse{OK: true})
}
