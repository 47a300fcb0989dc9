package detector

import (
	"context"
	"testing"
	"time"
)

func noSleep(time.Duration) {}

func TestExtractPort_SimpleMatch(t *testing.T) {
	port, ok := extractPort(`Local: http://localhost:5173`)
	if !ok || port != 5173 {
		t.Fatalf("got %d,%v", port, ok)
	}
}

func TestExtractPort_SkipsInUseLine(t *testing.T) {
	_, ok := extractPort("port 3000 in use\nretrying...")
	if ok {
		t.Fatal("expected in-use line to be ignored")
	}
}

func TestExtractPort_SkipsEaddrinuse(t *testing.T) {
	_, ok := extractPort("Error: EADDRINUSE on 4000")
	if ok {
		t.Fatal("expected eaddrinuse line to be ignored")
	}
}

func TestExtractPort_LastMatchWins(t *testing.T) {
	text := "listening on http://localhost:3000\nswitched to http://localhost:3001"
	port, ok := extractPort(text)
	if !ok || port != 3001 {
		t.Fatalf("got %d,%v", port, ok)
	}
}

func TestDetect_FindsPortInNewOutput(t *testing.T) {
	snapshots := []string{
		"starting up",
		"starting up\nLocal: http://localhost:5173",
	}
	call := 0
	read := func(ctx context.Context) (string, error) {
		s := snapshots[call]
		if call < len(snapshots)-1 {
			call++
		}
		return s, nil
	}
	port, ok := Detect(context.Background(), "starting up", read, noSleep)
	if !ok || port != 5173 {
		t.Fatalf("got %d,%v", port, ok)
	}
}

func TestDetect_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	read := func(ctx context.Context) (string, error) { return "unchanged", nil }
	_, ok := Detect(ctx, "unchanged", read, noSleep)
	if ok {
		t.Fatal("expected no result after cancellation")
	}
}

func TestDetect_NoMatchExhaustsBudget(t *testing.T) {
	read := func(ctx context.Context) (string, error) { return "still booting", nil }
	_, ok := Detect(context.Background(), "", read, noSleep)
	if ok {
		t.Fatal("expected no port found")
	}
}
