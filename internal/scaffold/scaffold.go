// Package scaffold writes a starter catalog file for a new project.
package scaffold

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/devservers/devserversd/internal/ux"
)

var catalogTemplate = `{
  "version": 1,
  "services": [
    {
      "name": "web",
      "cwd": ".",
      "command": "npm run dev -- --port $PORT",
      "portMode": "detect"
    }
  ]
}
`

var composeTemplate = `# Optional, auto-discovered per registered project.
# services:
#   api:
#     cwd: ./api
#     command: go run . -addr :${PORT}
#     portMode: registry
#     dependsOn: [db]
#   db:
#     cwd: ./db
#     command: ./run-postgres.sh
`

// Init writes a starter devservers.json (and an example, commented-out
// devservers-compose.yml) into targetDir. Fails if a catalog already
// exists there.
func Init(targetDir string) error {
	configPath := filepath.Join(targetDir, "devservers.json")
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("devservers.json already exists in %s", targetDir)
	}

	if err := os.WriteFile(configPath, []byte(catalogTemplate), 0644); err != nil {
		return fmt.Errorf("writing devservers.json: %w", err)
	}

	composePath := filepath.Join(targetDir, "devservers-compose.yml")
	if _, err := os.Stat(composePath); err != nil {
		if err := os.WriteFile(composePath, []byte(composeTemplate), 0644); err != nil {
			return fmt.Errorf("writing devservers-compose.yml: %w", err)
		}
	}

	fmt.Printf("\n%s%s✓ Initialized devservers.json%s\n\n", ux.Bold, ux.Green, ux.Reset)
	fmt.Printf("  Created:\n")
	fmt.Printf("    %sdevservers.json%s          — one example service\n", ux.Cyan, ux.Reset)
	fmt.Printf("    %sdevservers-compose.yml%s   — commented-out example, auto-discovered per project\n\n", ux.Cyan, ux.Reset)
	fmt.Printf("  Next: %sdevserversd serve%s, then add real services with %sPOST /services%s\n\n", ux.Cyan, ux.Reset, ux.Cyan, ux.Reset)

	return nil
}
