package portregistry

import (
	"os"
	"path/filepath"
	"testing"
)

func alwaysFree(int) bool { return true }

func TestDefaultPath(t *testing.T) {
	got := DefaultPath("/home/user/.config/devservers/devservers.json")
	want := "/home/user/.config/devservers/port-registry.json"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestDefaultPath_EnvOverride(t *testing.T) {
	t.Setenv("DEVSERVERS_PORT_REGISTRY", "/tmp/custom-registry.json")
	got := DefaultPath("/home/user/.config/devservers/devservers.json")
	if got != "/tmp/custom-registry.json" {
		t.Fatalf("got %q", got)
	}
}

func TestRead_MissingFileCreateIfMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "port-registry.json")
	r, err := Read(path, true)
	if err != nil {
		t.Fatal(err)
	}
	if r.Version != schemaVersion || len(r.Services) != 0 {
		t.Fatalf("expected empty registry, got %+v", r)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected lazy-create to persist the empty registry to disk: %v", err)
	}
	reread, err := Read(path, false)
	if err != nil {
		t.Fatalf("expected persisted file to be readable without createIfMissing: %v", err)
	}
	if reread.Version != schemaVersion || len(reread.Services) != 0 {
		t.Fatalf("expected persisted registry to round-trip empty, got %+v", reread)
	}
}

func TestRead_MissingFileNoCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "port-registry.json")
	if _, err := Read(path, false); err == nil {
		t.Fatal("expected error for missing file without createIfMissing")
	}
}

func TestEnsureRegistryPort_LazyCreateAndAllocate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "port-registry.json")
	port, err := EnsureRegistryPort(path, "api", EnsureOptions{BasePort: 4000, Probe: alwaysFree})
	if err != nil {
		t.Fatal(err)
	}
	if port != 4000 {
		t.Fatalf("got port %d, want 4000", port)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected registry file to be created: %v", err)
	}
}

func TestEnsureRegistryPort_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "port-registry.json")
	first, err := EnsureRegistryPort(path, "api", EnsureOptions{BasePort: 4000, Probe: alwaysFree})
	if err != nil {
		t.Fatal(err)
	}
	second, err := EnsureRegistryPort(path, "api", EnsureOptions{BasePort: 4000, Probe: alwaysFree})
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("expected idempotent result, got %d then %d", first, second)
	}
}

func TestEnsureRegistryPort_SkipsUsedAndReserved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "port-registry.json")
	if _, err := EnsureRegistryPort(path, "api", EnsureOptions{BasePort: 4000, Probe: alwaysFree}); err != nil {
		t.Fatal(err)
	}
	port, err := EnsureRegistryPort(path, "web", EnsureOptions{
		BasePort: 4000,
		Reserved: map[int]bool{4001: true},
		Probe:    alwaysFree,
	})
	if err != nil {
		t.Fatal(err)
	}
	if port != 4002 {
		t.Fatalf("got port %d, want 4002 (4000 used by api, 4001 reserved)", port)
	}
}

func TestEnsureRegistryPort_ProbeRejectsUntilFree(t *testing.T) {
	path := filepath.Join(t.TempDir(), "port-registry.json")
	probe := func(p int) bool { return p >= 4002 }
	port, err := EnsureRegistryPort(path, "api", EnsureOptions{BasePort: 4000, Probe: probe})
	if err != nil {
		t.Fatal(err)
	}
	if port != 4002 {
		t.Fatalf("got port %d, want 4002", port)
	}
}

func TestEnsureRegistryPort_NoFreePort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "port-registry.json")
	_, err := EnsureRegistryPort(path, "api", EnsureOptions{BasePort: 65535, Probe: func(int) bool { return false }})
	if err == nil {
		t.Fatal("expected ErrNoFreePort")
	}
}

func TestRead_RejectsOutOfRangePort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "port-registry.json")
	if err := os.WriteFile(path, []byte(`{"version":1,"services":{"api":70000}}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path, false); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}

func TestRead_AcceptsStringPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "port-registry.json")
	if err := os.WriteFile(path, []byte(`{"version":1,"services":{"api":"4000"}}`), 0644); err != nil {
		t.Fatal(err)
	}
	r, err := Read(path, false)
	if err != nil {
		t.Fatal(err)
	}
	if r.Services["api"] != 4000 {
		t.Fatalf("got %d, want 4000", r.Services["api"])
	}
}
