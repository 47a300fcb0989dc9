// Package portregistry persists the service name to port assignments
// made under registry port mode, and allocates new ports on demand by
// probing for an available TCP listener on loopback.
package portregistry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/devservers/devserversd/internal/apierror"
	"github.com/devservers/devserversd/internal/atomicfile"
)

const schemaVersion = 1
const defaultBasePort = 3100
const maxPort = 65535

// Registry is the on-disk mapping of service name to allocated port.
type Registry struct {
	Version  int            `json:"version"`
	Services map[string]int `json:"services"`
}

// DefaultPath returns port-registry.json alongside configPath, unless
// DEVSERVERS_PORT_REGISTRY overrides the location.
func DefaultPath(configPath string) string {
	if v := os.Getenv("DEVSERVERS_PORT_REGISTRY"); v != "" {
		return v
	}
	return filepath.Join(filepath.Dir(configPath), "port-registry.json")
}

// Read loads the registry at path. A missing file is only tolerated
// when createIfMissing is set, in which case an empty registry is
// written to path and returned; otherwise a missing file is an error.
func Read(path string, createIfMissing bool) (Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && createIfMissing {
			empty := Registry{Version: schemaVersion, Services: map[string]int{}}
			if err := write(path, empty); err != nil {
				return Registry{}, err
			}
			return empty, nil
		}
		return Registry{}, fmt.Errorf("reading port registry %s: %w", path, err)
	}

	var raw struct {
		Version  int                 `json:"version"`
		Services map[string]jsonPort `json:"services"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Registry{}, apierror.Wrap(apierror.KindRegistry, fmt.Sprintf("parsing port registry %s", path), err)
	}
	if raw.Version != schemaVersion {
		return Registry{}, apierror.Validationf("port registry %s: unsupported version %d", path, raw.Version)
	}

	services := make(map[string]int, len(raw.Services))
	for name, p := range raw.Services {
		port := int(p)
		if port <= 0 || port > maxPort {
			return Registry{}, apierror.Validationf("port registry %s: service %q has invalid port %d", path, name, port)
		}
		services[name] = port
	}
	return Registry{Version: schemaVersion, Services: services}, nil
}

// jsonPort accepts both numeric and string-encoded port values.
type jsonPort int

func (p *jsonPort) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*p = jsonPort(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("port value %q is not an integer", s)
	}
	*p = jsonPort(n)
	return nil
}

func write(path string, r Registry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating port registry directory: %w", err)
	}
	lock := atomicfile.NewFileLock(path)
	release, err := lock.Acquire()
	if err != nil {
		return fmt.Errorf("locking port registry %s: %w", path, err)
	}
	defer release()

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling port registry: %w", err)
	}
	data = append(data, '\n')
	if err := atomicfile.Write(path, data, 0644); err != nil {
		return fmt.Errorf("writing port registry %s: %w", path, err)
	}
	return nil
}

// EnsureOptions configures an EnsureRegistryPort call.
type EnsureOptions struct {
	PreferredPort int
	BasePort      int
	// Reserved holds ports declared statically by other services; they
	// are excluded from allocation even though they never appear in
	// the registry file.
	Reserved map[int]bool
	// Probe reports whether port is free to bind. Overridable for
	// tests; defaults to a real loopback TCP bind check.
	Probe func(port int) bool
}

func probeLoopback(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}

// ErrNoFreePort is returned when the scan exhausts the port space.
var ErrNoFreePort = errors.New("no free port available")

// EnsureRegistryPort returns the port assigned to name, allocating and
// persisting one if absent. It is the only mutating registry
// operation; callers must serialize concurrent calls against the same
// path themselves (the daemon does this via its single request actor).
func EnsureRegistryPort(path, name string, opts EnsureOptions) (int, error) {
	reg, err := Read(path, true)
	if err != nil {
		return 0, err
	}

	if port, ok := reg.Services[name]; ok {
		return port, nil
	}

	used := make(map[int]bool, len(reg.Services)+len(opts.Reserved))
	for _, p := range reg.Services {
		used[p] = true
	}
	for p := range opts.Reserved {
		used[p] = true
	}

	start := opts.PreferredPort
	if start <= 0 {
		start = opts.BasePort
	}
	if start <= 0 {
		start = defaultBasePort
	}

	probe := opts.Probe
	if probe == nil {
		probe = probeLoopback
	}

	var assigned int
	for p := start; p <= maxPort; p++ {
		if used[p] {
			continue
		}
		if probe(p) {
			assigned = p
			break
		}
	}
	if assigned == 0 {
		return 0, apierror.Wrap(apierror.KindRegistry, fmt.Sprintf("service %q", name), ErrNoFreePort)
	}

	if reg.Services == nil {
		reg.Services = map[string]int{}
	}
	reg.Services[name] = assigned
	reg.Version = schemaVersion
	if err := write(path, reg); err != nil {
		return 0, err
	}
	return assigned, nil
}
