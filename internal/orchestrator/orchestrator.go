// Package orchestrator ties the catalog, dependency graph, port
// registry, template engine, supervisor and log detector together
// into the start/stop/restart semantics described for the daemon. All
// catalog-mutating work funnels through a single actor goroutine so
// that concurrent HTTP requests observe the same serialization a
// single-threaded event loop would give for free.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/devservers/devserversd/internal/apierror"
	"github.com/devservers/devserversd/internal/apimetrics"
	"github.com/devservers/devserversd/internal/catalog"
	"github.com/devservers/devserversd/internal/compose"
	"github.com/devservers/devserversd/internal/detector"
	"github.com/devservers/devserversd/internal/graph"
	"github.com/devservers/devserversd/internal/portregistry"
	"github.com/devservers/devserversd/internal/supervisor"
	"github.com/devservers/devserversd/internal/template"
)

// Clock abstracts time.Now for deterministic tests.
type Clock func() time.Time

// Orchestrator is the single entry point for every mutating
// operation. Construct with New and call Run in its own goroutine
// before issuing requests.
type Orchestrator struct {
	configPath     string
	portRegistry   string
	supervisor     *supervisor.Supervisor
	compose        *compose.Loader
	metrics        *apimetrics.Metrics
	log            *slog.Logger
	now            Clock
	detectionCtx   context.Context
	detectionStop  context.CancelFunc
	probe          func(int) bool
	onComposeStarted      func(name string, at time.Time)
	onComposeDetectedPort func(name string, port int)

	jobs chan job
}

type job struct {
	fn   func() (any, error)
	resp chan result
}

type result struct {
	value any
	err   error
}

// Options configures a new Orchestrator.
type Options struct {
	ConfigPath   string
	PortRegistry string
	Supervisor   *supervisor.Supervisor
	Compose      *compose.Loader
	// Metrics records per-operation supervisor call outcomes; nil is a
	// valid no-op (tests construct Orchestrators without one).
	Metrics *apimetrics.Metrics
	Log     *slog.Logger
	Now     Clock
	// Probe overrides the port-availability probe used by the registry
	// (tests only); nil uses a real TCP bind check.
	Probe func(int) bool
	// OnComposeStarted and OnComposeDetectedPort are called when a
	// compose-sourced service (never persisted to the catalog file)
	// starts or has a port detected; a nil hook is skipped.
	OnComposeStarted      func(name string, at time.Time)
	OnComposeDetectedPort func(name string, port int)
}

// New constructs an Orchestrator. Call Run to start its actor
// goroutine.
func New(opts Options) *Orchestrator {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		configPath:            opts.ConfigPath,
		portRegistry:          opts.PortRegistry,
		supervisor:            opts.Supervisor,
		compose:               opts.Compose,
		metrics:               opts.Metrics,
		log:                   log,
		now:                   now,
		detectionCtx:          ctx,
		detectionStop:         cancel,
		probe:                 opts.Probe,
		onComposeStarted:      opts.OnComposeStarted,
		onComposeDetectedPort: opts.OnComposeDetectedPort,
		jobs:                  make(chan job, 64),
	}
}

// Run drives the actor loop until ctx is cancelled. Call it in its own
// goroutine at daemon startup.
func (o *Orchestrator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			o.detectionStop()
			return
		case j := <-o.jobs:
			v, err := j.fn()
			j.resp <- result{value: v, err: err}
		}
	}
}

// submit enqueues fn on the actor and blocks for its result.
func (o *Orchestrator) submit(fn func() (any, error)) (any, error) {
	resp := make(chan result, 1)
	o.jobs <- job{fn: fn, resp: resp}
	r := <-resp
	return r.value, r.err
}

// snapshot reads the config file and merges it with the current
// compose cache.
func (o *Orchestrator) snapshot() (catalog.Catalog, error) {
	c, err := catalog.Read(o.configPath)
	if err != nil {
		return catalog.Catalog{}, err
	}
	var composeServices []catalog.Service
	if o.compose != nil {
		composeServices = o.compose.Services()
	}
	return catalog.Merge(c, composeServices)
}

func buildGraph(c catalog.Catalog) (*graph.Graph, error) {
	return graph.Build(c.Services)
}

// declaredPortReservations returns the set of statically declared
// ports for every service other than except, for use as the reserved
// set passed to EnsureRegistryPort.
func declaredPortReservations(c catalog.Catalog, except string) map[int]bool {
	reserved := map[int]bool{}
	for _, s := range c.Services {
		if s.Name == except || s.Port == nil {
			continue
		}
		reserved[*s.Port] = true
	}
	return reserved
}

// resolvePort resolves the port a single service should use, possibly
// allocating and persisting one via the port registry.
func (o *Orchestrator) resolvePort(c catalog.Catalog, s catalog.Service) (int, bool, error) {
	switch s.EffectivePortMode() {
	case catalog.PortModeRegistry:
		port, err := portregistry.EnsureRegistryPort(o.portRegistry, s.Name, portregistry.EnsureOptions{
			PreferredPort: intOrZero(s.Port),
			Reserved:      declaredPortReservations(c, s.Name),
			Probe:         o.probe,
		})
		if err != nil {
			return 0, false, err
		}
		return port, true, nil
	default: // static, detect
		if s.Port == nil {
			return 0, false, nil
		}
		return *s.Port, true, nil
	}
}

// recordSupervisorCall increments the supervisor-call counter for
// operation, labeled "ok" or "error" depending on err. A nil metrics
// instance (as in tests) is a silent no-op.
func (o *Orchestrator) recordSupervisorCall(operation string, err error) {
	if o.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	o.metrics.SupervisorCalls.WithLabelValues(operation, outcome).Inc()
}

func intOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// portLookup wraps the name->port map of already-resolved services as
// the lookup used for template expansion.
func portLookup(resolved map[string]int) template.PortLookup {
	return func(name string) (int, bool) {
		p, ok := resolved[name]
		return p, ok
	}
}

// Start starts name and every (transitive) dependency it has not yet
// started, strictly one at a time in topological order.
func (o *Orchestrator) Start(ctx context.Context, name string) error {
	_, err := o.submit(func() (any, error) { return nil, o.doStart(ctx, name) })
	return err
}

func (o *Orchestrator) doStart(ctx context.Context, name string) error {
	if err := o.supervisor.EnsureSession(ctx); err != nil {
		return err
	}
	c, err := o.snapshot()
	if err != nil {
		return err
	}
	g, err := buildGraph(c)
	if err != nil {
		return err
	}
	deps, err := graph.CollectDependencies(g, name)
	if err != nil {
		return err
	}
	order := graph.TopoSort(g, deps)

	resolved := map[string]int{}
	for _, target := range order {
		if err := o.startOne(ctx, c, g, target, resolved); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) startOne(ctx context.Context, c catalog.Catalog, g *graph.Graph, name string, resolved map[string]int) error {
	s, ok := g.Service(name)
	if !ok {
		return apierror.NotFoundf("service %q not found", name)
	}

	port, ok, err := o.resolvePort(c, s)
	if err != nil {
		return err
	}
	if ok {
		resolved[name] = port
	}

	env := template.ExpandEnv(s.Env, port, ok, portLookup(resolved))
	command := supervisor.MaterializeCommand(s.Command, env)

	started, err := o.supervisor.Start(ctx, name, s.Cwd, command)
	o.recordSupervisorCall("start", err)
	if err != nil {
		return err
	}
	if !started {
		return nil
	}

	if err := o.recordStart(s); err != nil {
		o.log.Error("orchestrator: recording lastStartedAt failed", "service", name, "error", err)
	}

	if s.EffectivePortMode() == catalog.PortModeDetect {
		o.scheduleDetection(s)
	}
	return nil
}

// recordStart persists LastStartedAt = now for config-sourced services.
// For compose-sourced services nothing is persisted; the start time is
// only passed to the OnComposeStarted hook, when one is set.
func (o *Orchestrator) recordStart(s catalog.Service) error {
	if s.Source != catalog.SourceConfig {
		if o.onComposeStarted != nil {
			o.onComposeStarted(s.Name, o.now())
		}
		return nil
	}
	c, err := catalog.Read(o.configPath)
	if err != nil {
		return err
	}
	now := o.now()
	updated := s
	updated.LastStartedAt = &now
	next := catalog.UpsertService(c, updated)
	return catalog.Write(o.configPath, next)
}

// scheduleDetection launches a background log-detection task that
// outlives the current request, per the daemon's background-task
// lifetime policy.
func (o *Orchestrator) scheduleDetection(s catalog.Service) {
	baseline := o.supervisor.CapturePane(o.detectionCtx, s.Name, 200, false)
	read := func(ctx context.Context) (string, error) {
		return o.supervisor.CapturePane(ctx, s.Name, 200, false), nil
	}

	go func() {
		port, ok := detector.Detect(o.detectionCtx, baseline, read, nil)
		if !ok {
			o.log.Info("orchestrator: log detection timed out", "service", s.Name)
			return
		}
		if _, err := o.submit(func() (any, error) { return nil, o.recordDetectedPort(s.Name, port) }); err != nil {
			o.log.Error("orchestrator: recording detected port failed", "service", s.Name, "error", err)
		}
	}()
}

func (o *Orchestrator) recordDetectedPort(name string, port int) error {
	c, err := catalog.Read(o.configPath)
	if err != nil {
		return err
	}
	s, ok := c.FindService(name)
	if !ok {
		// Compose-sourced: no config entry to update, but the API
		// layer's runtime map (which owns compose display state) still
		// needs the detected port.
		if o.onComposeDetectedPort != nil {
			o.onComposeDetectedPort(name, port)
		}
		return nil
	}
	p := port
	s.Port = &p
	next := catalog.UpsertService(c, s)
	return catalog.Write(o.configPath, next)
}

// Stop stops name and every (transitive) dependent, dependents first.
func (o *Orchestrator) Stop(ctx context.Context, name string) error {
	_, err := o.submit(func() (any, error) { return nil, o.doStop(ctx, name) })
	return err
}

func (o *Orchestrator) doStop(ctx context.Context, name string) error {
	c, err := o.snapshot()
	if err != nil {
		return err
	}
	g, err := buildGraph(c)
	if err != nil {
		return err
	}
	dependents, err := graph.CollectDependents(g, name)
	if err != nil {
		return err
	}
	order := graph.TopoSort(g, dependents)
	reversed := reverse(order)

	for _, target := range reversed {
		// Stop tolerates individual failures; supervisor.Stop already
		// swallows subprocess errors for "missing window".
		err := o.supervisor.Stop(ctx, target)
		o.recordSupervisorCall("stop", err)
	}
	return nil
}

// Restart starts name's strict dependencies (deps-first, excluding
// name), then stops and restarts name itself. Dependents are left
// untouched.
func (o *Orchestrator) Restart(ctx context.Context, name string) error {
	_, err := o.submit(func() (any, error) { return nil, o.doRestart(ctx, name) })
	return err
}

func (o *Orchestrator) doRestart(ctx context.Context, name string) error {
	if err := o.supervisor.EnsureSession(ctx); err != nil {
		return err
	}
	c, err := o.snapshot()
	if err != nil {
		return err
	}
	g, err := buildGraph(c)
	if err != nil {
		return err
	}
	deps, err := graph.CollectDependencies(g, name)
	if err != nil {
		return err
	}
	order := graph.TopoSort(g, deps)

	resolved := map[string]int{}
	for _, target := range order {
		if target == name {
			continue
		}
		if err := o.startOne(ctx, c, g, target, resolved); err != nil {
			return err
		}
	}

	s, ok := g.Service(name)
	if !ok {
		return apierror.NotFoundf("service %q not found", name)
	}
	port, ok, err := o.resolvePort(c, s)
	if err != nil {
		return err
	}
	if ok {
		resolved[name] = port
	}
	env := template.ExpandEnv(s.Env, port, ok, portLookup(resolved))
	command := supervisor.MaterializeCommand(s.Command, env)

	_, err = o.supervisor.Restart(ctx, name, s.Cwd, command)
	o.recordSupervisorCall("restart", err)
	if err != nil {
		return err
	}
	if err := o.recordStart(s); err != nil {
		o.log.Error("orchestrator: recording lastStartedAt failed", "service", name, "error", err)
	}
	if s.EffectivePortMode() == catalog.PortModeDetect {
		o.scheduleDetection(s)
	}
	return nil
}

func reverse(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}
