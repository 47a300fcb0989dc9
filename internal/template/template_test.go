package template

import "testing"

func lookupFor(ports map[string]int) PortLookup {
	return func(name string) (int, bool) {
		p, ok := ports[name]
		return p, ok
	}
}

func TestExpand_OwnPort(t *testing.T) {
	got := Expand("http://localhost:$PORT", 4000, true, nil)
	if got != "http://localhost:4000" {
		t.Fatalf("got %q", got)
	}
}

func TestExpand_OwnPortBraced(t *testing.T) {
	got := Expand("http://localhost:${PORT}/api", 4000, true, nil)
	if got != "http://localhost:4000/api" {
		t.Fatalf("got %q", got)
	}
}

func TestExpand_OwnPortInvalidLeavesTokenUntouched(t *testing.T) {
	got := Expand("$PORT", 0, false, nil)
	if got != "$PORT" {
		t.Fatalf("got %q", got)
	}
}

func TestExpand_NamedToken(t *testing.T) {
	lookup := lookupFor(map[string]int{"api": 5001})
	got := Expand("http://localhost:${PORT:api}", 0, false, lookup)
	if got != "http://localhost:5001" {
		t.Fatalf("got %q", got)
	}
}

func TestExpand_NamedTokenUnresolvedLeftVerbatim(t *testing.T) {
	lookup := lookupFor(map[string]int{})
	got := Expand("${PORT:ghost}", 0, false, lookup)
	if got != "${PORT:ghost}" {
		t.Fatalf("got %q", got)
	}
}

func TestExpand_BothPassesApplied(t *testing.T) {
	lookup := lookupFor(map[string]int{"db": 6543})
	got := Expand("DB=${PORT:db} SELF=$PORT", 4000, true, lookup)
	if got != "DB=6543 SELF=4000" {
		t.Fatalf("got %q", got)
	}
}

func TestExpandEnv(t *testing.T) {
	lookup := lookupFor(map[string]int{"api": 5001})
	env := map[string]string{
		"API_URL": "http://localhost:${PORT:api}",
		"SELF":    "$PORT",
	}
	got := ExpandEnv(env, 4000, true, lookup)
	if got["API_URL"] != "http://localhost:5001" {
		t.Fatalf("got %q", got["API_URL"])
	}
	if got["SELF"] != "4000" {
		t.Fatalf("got %q", got["SELF"])
	}
}

func TestExpandEnv_Nil(t *testing.T) {
	if ExpandEnv(nil, 0, false, nil) != nil {
		t.Fatal("expected nil passthrough")
	}
}
