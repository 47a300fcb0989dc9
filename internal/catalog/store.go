package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/devservers/devserversd/internal/apierror"
	"github.com/devservers/devserversd/internal/atomicfile"
)

// DefaultPath returns the OS-dependent default location of the primary
// configuration file, honoring the DEVSERVERS_CONFIG override.
func DefaultPath() (string, error) {
	if v := os.Getenv("DEVSERVERS_CONFIG"); v != "" {
		return v, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Devservers Manager", "devservers.json"), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "Devservers Manager", "devservers.json"), nil
	default:
		xdg := os.Getenv("XDG_CONFIG_HOME")
		if xdg == "" {
			xdg = filepath.Join(home, ".config")
		}
		return filepath.Join(xdg, "devservers", "devservers.json"), nil
	}
}

// Read loads the catalog at path. A missing file yields an empty, valid
// catalog rather than an error.
func Read(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Catalog{Version: 1}, nil
		}
		return Catalog{}, fmt.Errorf("reading catalog %s: %w", path, err)
	}

	version, rawServices, projects, err := unmarshalStrict(data)
	if err != nil {
		return Catalog{}, apierror.Wrap(apierror.KindValidation, fmt.Sprintf("catalog %s", path), err)
	}

	c := Catalog{
		Version:            version,
		RegisteredProjects: projects,
	}
	for _, rs := range rawServices {
		s, err := rs.toService()
		if err != nil {
			return Catalog{}, fmt.Errorf("catalog %s: %w", path, err)
		}
		c.Services = append(c.Services, s)
	}
	if c.Version == 0 {
		c.Version = 1
	}

	if err := Validate(c); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Write validates and atomically persists the catalog to path, pretty
// printed with a trailing newline.
func Write(path string, c Catalog) error {
	if err := Validate(c); err != nil {
		return err
	}
	if c.Version == 0 {
		c.Version = 1
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating catalog directory: %w", err)
	}

	lock := atomicfile.NewFileLock(path)
	release, err := lock.Acquire()
	if err != nil {
		return fmt.Errorf("locking catalog %s: %w", path, err)
	}
	defer release()

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling catalog: %w", err)
	}
	data = append(data, '\n')

	if err := atomicfile.Write(path, data, 0644); err != nil {
		return fmt.Errorf("writing catalog %s: %w", path, err)
	}
	return nil
}
