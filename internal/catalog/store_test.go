package catalog

import (
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func intp(n int) *int { return &n }

func sampleService(name string) Service {
	return Service{
		Name:    name,
		Cwd:     "/tmp/" + name,
		Command: "npm run dev",
		Source:  SourceConfig,
	}
}

func TestReadMissingFileReturnsEmptyCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devservers.json")
	c, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Version != 1 || len(c.Services) != 0 {
		t.Fatalf("expected empty valid catalog, got %+v", c)
	}
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devservers.json")
	c := Catalog{
		Version: 1,
		Services: []Service{
			sampleService("api"),
			sampleService("web"),
		},
		RegisteredProjects: []Project{{Name: "academy", Path: "/repo/academy"}},
	}
	c.Services[1].DependsOn = []string{"api"}

	if err := Write(path, c); err != nil {
		t.Fatal(err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}

	// Raw is populated only on Read (the JSON source object); clear it
	// before comparing since Write's input never carries one.
	for i := range got.Services {
		got.Services[i].Raw = nil
	}
	if !reflect.DeepEqual(c, got) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", c, got)
	}
}

func TestSchemaRejection_InvalidName(t *testing.T) {
	c := Catalog{Services: []Service{sampleService("has space")}}
	if err := Validate(c); err == nil || !strings.Contains(err.Error(), "invalid name") {
		t.Fatalf("expected invalid name error, got %v", err)
	}

	c2 := Catalog{Services: []Service{sampleService("has/slash")}}
	if err := Validate(c2); err == nil {
		t.Fatal("expected error for slash in name")
	}
}

func TestSchemaAcceptsEmptyServices(t *testing.T) {
	if err := Validate(Catalog{Version: 1}); err != nil {
		t.Fatalf("expected empty services to be valid, got %v", err)
	}
}

func TestUpsertServicePreservesLastStartedAt(t *testing.T) {
	original := sampleService("api")
	ts := mustParseTime(t, "2026-01-01T00:00:00Z")
	original.LastStartedAt = &ts

	c := Catalog{Services: []Service{original}}

	updated := sampleService("api")
	updated.Command = "npm run dev --watch"
	// updated.LastStartedAt intentionally left unset

	next := UpsertService(c, updated)
	got, ok := next.FindService("api")
	if !ok {
		t.Fatal("expected service to exist")
	}
	if got.LastStartedAt == nil || !got.LastStartedAt.Equal(ts) {
		t.Fatalf("expected lastStartedAt to be preserved, got %v", got.LastStartedAt)
	}
	if got.Command != "npm run dev --watch" {
		t.Fatalf("expected command to be updated, got %q", got.Command)
	}
}

func TestRemoveService(t *testing.T) {
	c := Catalog{Services: []Service{sampleService("api"), sampleService("web")}}
	next := RemoveService(c, "api")
	if _, ok := next.FindService("api"); ok {
		t.Fatal("expected api to be removed")
	}
	if _, ok := next.FindService("web"); !ok {
		t.Fatal("expected web to remain")
	}
}

func TestUpsertAndRemoveProject(t *testing.T) {
	c := Catalog{}
	c = UpsertProject(c, Project{Name: "academy", Path: "/repo/academy"})
	if _, ok := c.FindProject("academy"); !ok {
		t.Fatal("expected project to be added")
	}
	c = RemoveProject(c, "academy")
	if _, ok := c.FindProject("academy"); ok {
		t.Fatal("expected project to be removed")
	}
}

func TestServicePortRangeValidation(t *testing.T) {
	s := sampleService("api")
	s.Port = intp(70000)
	if err := Validate(Catalog{Services: []Service{s}}); err == nil {
		t.Fatal("expected out-of-range port to be rejected")
	}
}

func TestUnknownServiceKeyRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devservers.json")
	data := []byte(`{"version":1,"services":[{"name":"api","cwd":"/tmp","command":"go run .","bogus":true}]}`)
	if err := writeRaw(path, data); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path); err == nil {
		t.Fatal("expected unknown service key to fail validation")
	}
}
