package graph

import (
	"reflect"
	"strings"
	"testing"

	"github.com/devservers/devserversd/internal/catalog"
)

func svc(name string, deps ...string) catalog.Service {
	return catalog.Service{Name: name, Cwd: "/tmp", Command: "run", DependsOn: deps}
}

func TestBuild_MissingDependency(t *testing.T) {
	_, err := Build([]catalog.Service{svc("web", "api")})
	if err == nil || !strings.Contains(err.Error(), "unknown service") {
		t.Fatalf("expected unknown dependency error, got %v", err)
	}
}

func TestBuild_SelfDependency(t *testing.T) {
	_, err := Build([]catalog.Service{svc("web", "web")})
	if err == nil || !strings.Contains(err.Error(), "depends on itself") {
		t.Fatalf("expected self-dependency error, got %v", err)
	}
}

func TestBuild_DuplicateDependency(t *testing.T) {
	_, err := Build([]catalog.Service{
		svc("api"),
		svc("web", "api", "api"),
	})
	if err == nil || !strings.Contains(err.Error(), "duplicate dependency") {
		t.Fatalf("expected duplicate dependency error, got %v", err)
	}
}

func TestBuild_Cycle(t *testing.T) {
	_, err := Build([]catalog.Service{
		svc("a", "b"),
		svc("b", "c"),
		svc("c", "a"),
	})
	if err == nil || !strings.Contains(err.Error(), "cycle detected") {
		t.Fatalf("expected cycle error, got %v", err)
	}
	if !strings.Contains(err.Error(), "a -> b -> c -> a") {
		t.Fatalf("expected cycle path in error, got %v", err)
	}
}

func dbApiWeb(t *testing.T) *Graph {
	t.Helper()
	g, err := Build([]catalog.Service{
		svc("db"),
		svc("api", "db"),
		svc("web", "api"),
	})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestTopoSort_Dependencies(t *testing.T) {
	g := dbApiWeb(t)
	deps, err := CollectDependencies(g, "web")
	if err != nil {
		t.Fatal(err)
	}
	got := TopoSort(g, deps)
	want := []string{"db", "api", "web"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestTopoSort_Dependents(t *testing.T) {
	g := dbApiWeb(t)
	dependents, err := CollectDependents(g, "db")
	if err != nil {
		t.Fatal(err)
	}
	order := TopoSort(g, dependents)
	reversed := make([]string, len(order))
	for i, n := range order {
		reversed[len(order)-1-i] = n
	}
	want := []string{"web", "api", "db"}
	if !reflect.DeepEqual(reversed, want) {
		t.Fatalf("got %v, want %v", reversed, want)
	}
}

func TestCollectDependencies_UnknownService(t *testing.T) {
	g := dbApiWeb(t)
	if _, err := CollectDependencies(g, "ghost"); err == nil {
		t.Fatal("expected error for unknown service")
	}
}

func TestTopoSort_StableTiebreak(t *testing.T) {
	// Two independent services with no ordering relationship: the
	// catalog insertion order must be preserved.
	g, err := Build([]catalog.Service{svc("z"), svc("a")})
	if err != nil {
		t.Fatal(err)
	}
	subset := map[string]bool{"z": true, "a": true}
	got := TopoSort(g, subset)
	want := []string{"z", "a"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
