package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// platformProvidedKeys are set by the hosting platform and have no local example
var platformProvidedKeys = map[string]bool{
	"GO_VERSION": true,
}

// Descriptor represents the platform deployment descriptor (render.yaml)
type Descriptor struct {
	Services  []ServiceSpec  `yaml:"services"`
	Databases []DatabaseSpec `yaml:"databases"`
}

// ServiceSpec represents one service declared in the descriptor
type ServiceSpec struct {
	Type         string   `yaml:"type"`
	Name         string   `yaml:"name"`
	Runtime      string   `yaml:"runtime"`
	BuildCommand string   `yaml:"buildCommand"`
	StartCommand string   `yaml:"startCommand"`
	EnvVars      []EnvVar `yaml:"envVars"`
}

// DatabaseSpec represents a managed database declared in the descriptor
type DatabaseSpec struct {
	Name         string `yaml:"name"`
	DatabaseName string `yaml:"databaseName"`
	User         string `yaml:"user"`
}

// EnvVar represents an environment variable of a service.
// Exactly one of Value, GenerateValue or FromDatabase provides the value.
type EnvVar struct {
	Key           string        `yaml:"key"`
	Value         *string       `yaml:"value"`
	GenerateValue bool          `yaml:"generateValue"`
	FromDatabase  *FromDatabase `yaml:"fromDatabase"`
}

// FromDatabase references a property of a managed database
type FromDatabase struct {
	Name     string `yaml:"name"`
	Property string `yaml:"property"`
}

// hasSource reports whether the variable resolves to a value at deploy time
func (e *EnvVar) hasSource() bool {
	sources := 0
	if e.Value != nil && strings.TrimSpace(*e.Value) != "" {
		sources++
	}
	if e.GenerateValue {
		sources++
	}
	if e.FromDatabase != nil && e.FromDatabase.Name != "" && e.FromDatabase.Property != "" {
		sources++
	}
	return sources == 1
}

// LoadDescriptor reads and parses a deployment descriptor
func LoadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor: %w", err)
	}

	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor: %w", err)
	}
	return &d, nil
}

// Keys returns every environment variable key declared by the descriptor
func (d *Descriptor) Keys() []string {
	keys := make([]string, 0)
	for _, svc := range d.Services {
		for _, env := range svc.EnvVars {
			keys = append(keys, env.Key)
		}
	}
	return keys
}

// CheckDescriptor validates the descriptor against the project in root:
// env vars have keys and values, the start command runs a binary built
// from cmd/ and the build command applies migrations.
func CheckDescriptor(d *Descriptor, root string) error {
	var errs []error

	if len(d.Services) == 0 {
		errs = append(errs, fmt.Errorf("descriptor declares no services"))
	}

	databases := make(map[string]bool, len(d.Databases))
	for _, db := range d.Databases {
		databases[db.Name] = true
	}

	for _, svc := range d.Services {
		if svc.Name == "" {
			errs = append(errs, fmt.Errorf("service without name"))
		}
		if err := checkStartCommand(svc.StartCommand, root); err != nil {
			errs = append(errs, fmt.Errorf("service %s: %w", svc.Name, err))
		}
		if !strings.Contains(svc.BuildCommand, "migrate up") {
			errs = append(errs, fmt.Errorf("service %s: build command does not apply migrations", svc.Name))
		}

		seen := make(map[string]bool, len(svc.EnvVars))
		for i, env := range svc.EnvVars {
			if strings.TrimSpace(env.Key) == "" {
				errs = append(errs, fmt.Errorf("service %s: env var #%d has an empty key", svc.Name, i))
				continue
			}
			if seen[env.Key] {
				errs = append(errs, fmt.Errorf("service %s: duplicate env var %s", svc.Name, env.Key))
			}
			seen[env.Key] = true
			if !env.hasSource() {
				errs = append(errs, fmt.Errorf("service %s: env var %s needs exactly one of value, generateValue or fromDatabase", svc.Name, env.Key))
			}
			if env.FromDatabase != nil && !databases[env.FromDatabase.Name] {
				errs = append(errs, fmt.Errorf("service %s: env var %s references unknown database %s", svc.Name, env.Key, env.FromDatabase.Name))
			}
		}
	}

	return errors.Join(errs...)
}

// checkStartCommand ensures the command starts ./bin/<name> for an existing cmd/<name>
func checkStartCommand(command, root string) error {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return fmt.Errorf("empty start command")
	}
	binary := fields[0]
	if !strings.HasPrefix(binary, "./bin/") {
		return fmt.Errorf("start command %q does not run a compiled binary", command)
	}
	name := strings.TrimPrefix(binary, "./bin/")
	if info, err := os.Stat(filepath.Join(root, "cmd", name)); err != nil || !info.IsDir() {
		return fmt.Errorf("start command %q references unknown command cmd/%s", command, name)
	}
	return nil
}

// CheckEnvExample verifies that every descriptor key has an entry in the
// example environment file
func CheckEnvExample(d *Descriptor, envExamplePath string) error {
	example, err := godotenv.Read(envExamplePath)
	if err != nil {
		return fmt.Errorf("failed to read env example: %w", err)
	}

	var errs []error
	for _, key := range d.Keys() {
		if platformProvidedKeys[key] {
			continue
		}
		if _, ok := example[key]; !ok {
			errs = append(errs, fmt.Errorf("%s is declared in the descriptor but missing from %s", key, filepath.Base(envExamplePath)))
		}
	}
	return errors.Join(errs...)
}

var (
	launcherCd     = regexp.MustCompile(`(?m)cd\s+"?\$\(\s*dirname\s+"?\$(0|\{BASH_SOURCE\[0\]\})"?\s*\)"?[ \t]*(;|&&|$)`)
	launcherListen = regexp.MustCompile(`HOST=0\.0\.0\.0[\s\S]*PORT=8001|PORT=8001[\s\S]*HOST=0\.0\.0\.0`)
)

// CheckLauncher verifies that the local launcher changes into its own
// directory and binds all interfaces on port 8001
func CheckLauncher(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read launcher: %w", err)
	}
	script := string(data)

	if !strings.HasPrefix(script, "#!") {
		return fmt.Errorf("launcher has no shebang line")
	}
	if !launcherCd.MatchString(script) {
		return fmt.Errorf("launcher does not change into its own directory")
	}
	if !launcherListen.MatchString(script) {
		return fmt.Errorf("launcher does not listen on 0.0.0.0:8001")
	}
	return nil
}

// CheckDeployment runs every deployment check against the files in root
func CheckDeployment(root string) error {
	d, err := LoadDescriptor(filepath.Join(root, "deploy", "render.yaml"))
	if err != nil {
		return err
	}
	return errors.Join(
		CheckDescriptor(d, root),
		CheckEnvExample(d, filepath.Join(root, ".env.example")),
		CheckLauncher(filepath.Join(root, "start_dev.sh")),
	)
}
