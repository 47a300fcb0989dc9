package compose

import (
	"errors"
	"io/fs"
	"os"
)

// readFile returns nil, nil when path does not exist so callers can
// treat an absent compose file as "no services" rather than an error.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}
