package compose

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCompose(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ComposeFileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParse_RewritesLocalDependencyAndPortTemplate(t *testing.T) {
	dir := t.TempDir()
	path := writeCompose(t, dir, `
services:
  api:
    command: "go run ."
  web:
    command: "npm run dev"
    depends_on:
      - api
    environment:
      API_URL: "http://localhost:${PORT:api}"
`)
	result, err := Parse(path, dir, "academy")
	if err != nil {
		t.Fatal(err)
	}

	found := false
	for _, s := range result.Services {
		if s.Name != "academy_web" {
			continue
		}
		found = true
		if len(s.DependsOn) != 1 || s.DependsOn[0] != "academy_api" {
			t.Fatalf("got dependsOn %v", s.DependsOn)
		}
		if s.Env["API_URL"] != "http://localhost:${PORT:academy_api}" {
			t.Fatalf("got env %v", s.Env)
		}
	}
	if !found {
		t.Fatal("expected academy_web service")
	}
}

func TestParse_CommandAsList(t *testing.T) {
	dir := t.TempDir()
	path := writeCompose(t, dir, `
services:
  web:
    command: ["pnpm", "--filter", "web", "dev"]
`)
	result, err := Parse(path, dir, "academy")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Services) != 1 {
		t.Fatalf("expected 1 service, got %d", len(result.Services))
	}
	if result.Services[0].Command != "pnpm --filter web dev" {
		t.Fatalf("got %q", result.Services[0].Command)
	}
}

func TestParse_DependsOnMapIgnoresConditions(t *testing.T) {
	dir := t.TempDir()
	path := writeCompose(t, dir, `
services:
  db:
    command: "postgres"
  api:
    command: "go run ."
    depends_on:
      db:
        condition: service_healthy
`)
	result, err := Parse(path, dir, "academy")
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range result.Services {
		if s.Name == "academy_api" {
			if len(s.DependsOn) != 1 || s.DependsOn[0] != "academy_db" {
				t.Fatalf("got %v", s.DependsOn)
			}
		}
	}
}

func TestParse_EnvironmentAsList(t *testing.T) {
	dir := t.TempDir()
	path := writeCompose(t, dir, `
services:
  api:
    command: "go run ."
    environment:
      - "FOO=bar"
      - "BAZ=qux"
`)
	result, err := Parse(path, dir, "proj")
	if err != nil {
		t.Fatal(err)
	}
	env := result.Services[0].Env
	if env["FOO"] != "bar" || env["BAZ"] != "qux" {
		t.Fatalf("got %v", env)
	}
}

func TestParse_UnknownLocalDependencyLeftLiteralAndWarned(t *testing.T) {
	dir := t.TempDir()
	path := writeCompose(t, dir, `
services:
  web:
    command: "npm run dev"
    depends_on:
      - external_service
`)
	result, err := Parse(path, dir, "proj")
	if err != nil {
		t.Fatal(err)
	}
	if result.Services[0].DependsOn[0] != "external_service" {
		t.Fatalf("got %v", result.Services[0].DependsOn)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected a warning about the unknown dependency")
	}
}

func TestParse_MissingCommandIsError(t *testing.T) {
	dir := t.TempDir()
	path := writeCompose(t, dir, `
services:
  api:
    cwd: "."
`)
	if _, err := Parse(path, dir, "proj"); err == nil {
		t.Fatal("expected error for missing command")
	}
}

func TestParse_AbsentFileYieldsNoServices(t *testing.T) {
	dir := t.TempDir()
	result, err := Parse(filepath.Join(dir, ComposeFileName), dir, "proj")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Services) != 0 {
		t.Fatalf("expected no services, got %d", len(result.Services))
	}
}

func TestParse_RelativeCwdResolvedAgainstProjectRoot(t *testing.T) {
	dir := t.TempDir()
	path := writeCompose(t, dir, `
services:
  api:
    command: "go run ."
    working_dir: "./server"
`)
	result, err := Parse(path, dir, "proj")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "server")
	if result.Services[0].Cwd != want {
		t.Fatalf("got %q, want %q", result.Services[0].Cwd, want)
	}
}
