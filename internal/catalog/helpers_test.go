package catalog

import (
	"os"
	"testing"
	"time"
)

func mustParseTime(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatal(err)
	}
	return tm
}

func writeRaw(path string, data []byte) error {
	return os.WriteFile(path, data, 0644)
}
