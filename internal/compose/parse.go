// Package compose loads devservers-compose.yml files: a docker-compose
// shaped YAML document describing services local to a registered
// project, normalizes them into the catalog's strict service shape,
// and rewrites local names into their project-prefixed form.
package compose

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/devservers/devserversd/internal/catalog"
	"gopkg.in/yaml.v3"
)

// ComposeFileName is the file every registered project is checked for.
const ComposeFileName = "devservers-compose.yml"

// ParseResult holds the services parsed from one compose file, already
// rewritten into project-prefixed form, plus any warnings encountered.
type ParseResult struct {
	Services []catalog.Service
	Warnings []string
}

// Parse reads and normalizes the compose file at path, rooted at
// projectRoot, producing services prefixed with projectName_.
func Parse(path, projectRoot, projectName string) (ParseResult, error) {
	data, err := readFile(path)
	if err != nil {
		return ParseResult{}, err
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return ParseResult{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	rawServices, _ := doc["services"].(map[string]any)
	localNames := make(map[string]bool, len(rawServices))
	for name := range rawServices {
		localNames[name] = true
	}

	// Deterministic order for stable output across re-parses.
	names := make([]string, 0, len(rawServices))
	for name := range rawServices {
		names = append(names, name)
	}
	sort.Strings(names)

	var result ParseResult
	for _, name := range names {
		entry, _ := rawServices[name].(map[string]any)
		svc, warnings, err := parseEntry(name, entry, projectRoot, projectName, localNames)
		if err != nil {
			return ParseResult{}, fmt.Errorf("%s: service %q: %w", path, name, err)
		}
		svc.ComposeFile = path
		result.Services = append(result.Services, svc)
		result.Warnings = append(result.Warnings, warnings...)
	}
	return result, nil
}

func parseEntry(localName string, entry map[string]any, projectRoot, projectName string, localNames map[string]bool) (catalog.Service, []string, error) {
	var warnings []string

	command, err := parseCommand(entry)
	if err != nil {
		return catalog.Service{}, nil, err
	}

	cwd := firstString(entry, "cwd", "working_dir", "working-dir")
	if cwd == "" {
		cwd = projectRoot
	} else if !filepath.IsAbs(cwd) {
		cwd = filepath.Join(projectRoot, cwd)
	}

	deps, err := parseDependsOn(entry)
	if err != nil {
		return catalog.Service{}, nil, err
	}
	rewrittenDeps := make([]string, len(deps))
	for i, d := range deps {
		if localNames[d] {
			rewrittenDeps[i] = projectName + "_" + d
		} else {
			rewrittenDeps[i] = d
			warnings = append(warnings, fmt.Sprintf("dependency %q is not a local service in this compose file", d))
		}
	}

	env, err := parseEnv(entry)
	if err != nil {
		return catalog.Service{}, nil, err
	}
	env = rewriteEnvPortTemplates(env, localNames, projectName)

	var port *int
	if raw, ok := entry["port"]; ok {
		p, err := toInt(raw)
		if err != nil {
			return catalog.Service{}, nil, fmt.Errorf("port: %w", err)
		}
		port = &p
	}

	portMode := catalog.PortMode(firstString(entry, "portMode", "port_mode", "port-mode"))

	return catalog.Service{
		Name:        projectName + "_" + localName,
		Cwd:         cwd,
		Command:     command,
		Env:         env,
		Port:        port,
		PortMode:    portMode,
		DependsOn:   rewrittenDeps,
		Source:      catalog.SourceCompose,
		ProjectName: projectName,
		Raw:         entry,
	}, warnings, nil
}

func parseCommand(entry map[string]any) (string, error) {
	raw, ok := entry["command"]
	if !ok {
		return "", fmt.Errorf("command is required")
	}
	switch v := raw.(type) {
	case string:
		return v, nil
	case []any:
		tokens := make([]string, 0, len(v))
		for _, tok := range v {
			s, ok := tok.(string)
			if !ok {
				return "", fmt.Errorf("command list entries must be strings")
			}
			tokens = append(tokens, s)
		}
		return strings.Join(tokens, " "), nil
	default:
		return "", fmt.Errorf("command must be a string or list of strings")
	}
}

func parseDependsOn(entry map[string]any) ([]string, error) {
	raw, ok := firstKey(entry, "dependsOn", "depends_on", "depends-on")
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, d := range v {
			s, ok := d.(string)
			if !ok {
				return nil, fmt.Errorf("dependsOn list entries must be strings")
			}
			out = append(out, s)
		}
		return out, nil
	case map[string]any:
		// Condition-style sub-objects (e.g. {condition: service_healthy})
		// are ignored; only the keys (service names) matter.
		names := make([]string, 0, len(v))
		for name := range v {
			names = append(names, name)
		}
		sort.Strings(names)
		return names, nil
	default:
		return nil, fmt.Errorf("dependsOn must be a list or map")
	}
}

func parseEnv(entry map[string]any) (map[string]string, error) {
	raw, ok := firstKey(entry, "env", "environment")
	if !ok || raw == nil {
		return nil, nil
	}
	out := map[string]string{}
	switch v := raw.(type) {
	case map[string]any:
		for k, val := range v {
			out[k] = stringify(val)
		}
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("environment list entries must be KEY=VALUE strings")
			}
			k, val, found := strings.Cut(s, "=")
			if !found {
				return nil, fmt.Errorf("environment entry %q is not KEY=VALUE", s)
			}
			out[k] = val
		}
	default:
		return nil, fmt.Errorf("env must be a map or a list of KEY=VALUE strings")
	}
	return out, nil
}

// rewriteEnvPortTemplates rewrites ${PORT:<localName>} occurrences to
// ${PORT:<projectName>_<localName>} when localName is a local service.
func rewriteEnvPortTemplates(env map[string]string, localNames map[string]bool, projectName string) map[string]string {
	if env == nil {
		return nil
	}
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[k] = rewritePortTokens(v, localNames, projectName)
	}
	return out
}

func rewritePortTokens(value string, localNames map[string]bool, projectName string) string {
	const prefix = "${PORT:"
	var b strings.Builder
	rest := value
	for {
		idx := strings.Index(rest, prefix)
		if idx == -1 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:idx])
		afterPrefix := rest[idx+len(prefix):]
		end := strings.IndexByte(afterPrefix, '}')
		if end == -1 {
			b.WriteString(rest[idx:])
			break
		}
		name := afterPrefix[:end]
		if localNames[name] {
			b.WriteString("${PORT:" + projectName + "_" + name + "}")
		} else {
			b.WriteString(rest[idx : idx+len(prefix)+end+1])
		}
		rest = afterPrefix[end+1:]
	}
	return b.String()
}

func firstString(entry map[string]any, keys ...string) string {
	v, ok := firstKey(entry, keys...)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func firstKey(entry map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := entry[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func toInt(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case float64:
		return int(t), nil
	case string:
		return strconv.Atoi(t)
	default:
		return 0, fmt.Errorf("expected an integer, got %T", v)
	}
}
