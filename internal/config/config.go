// internal/config/config.go
//
// This package handles configuration and the .planner directory structure.
// Every directory the planner runs from gets a .planner/ folder.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/semester-planner/internal/clarify"
	"github.com/kingrea/semester-planner/internal/intake"
)

const (
	// PlannerDir is the name of the directory we create in the working directory
	PlannerDir = ".planner"

	DefaultBaseURL     = "http://localhost:8000"
	DefaultTimeout     = 120 * time.Second
	DefaultDevHost     = "127.0.0.1"
	DefaultLogLevel    = "info"
	defaultDownloadDir = "downloads"
)

// Environment overrides.
const (
	EnvAPIBase        = "PLANNER_API_BASE"
	EnvTimeout        = "PLANNER_TIMEOUT"
	EnvLogLevel       = "PLANNER_LOG_LEVEL"
	EnvDevBackend     = "PLANNER_DEV_BACKEND"
	EnvDevBackendPort = "PLANNER_DEV_BACKEND_PORT"
)

const defaultProjectConfigYAML = `# semester planner configuration
version: 1

# Where the planner service listens.
service:
  base_url: http://localhost:8000
  timeout: 2m

# Documents offered for upload.
intake:
  accept: [.pdf, .docx, .png, .jpg, .jpeg]
  max_bytes: 26214400

# Questions asked after the ones generated from the syllabus.
# preferences:
#   version: 1
#   questions:
#     - field: difficulty
#       question: "Is this subject difficult? (yes/no)"
#     - field: revision
#       question: "Do you want dedicated revision weeks? (yes/no)"

output:
  download_dir: .planner/downloads

logging:
  level: info
  max_size_mb: 10
  max_backups: 5
  max_age_days: 30
  compress: true

# Local stand-in for the planner service.
dev_backend:
  enabled: false
  host: 127.0.0.1
  port: 0
  # fixture: clarifications.yaml
`

// ServiceConfig locates the planner service.
type ServiceConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// IntakeConfig restricts what can be uploaded.
type IntakeConfig struct {
	Accept   []string `yaml:"accept"`
	MaxBytes int64    `yaml:"max_bytes"`
}

// OutputConfig controls where downloaded plans are written.
type OutputConfig struct {
	DownloadDir string `yaml:"download_dir"`
}

// LoggingConfig tunes the rotating diagnostics log.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// DevBackendConfig configures the local stand-in service.
type DevBackendConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Fixture string `yaml:"fixture,omitempty"`
}

// ProjectConfig models .planner/config.yaml.
type ProjectConfig struct {
	Version     int                    `yaml:"version"`
	Service     ServiceConfig          `yaml:"service"`
	Intake      IntakeConfig           `yaml:"intake"`
	Preferences *clarify.PreferenceSet `yaml:"preferences,omitempty"`
	Output      OutputConfig           `yaml:"output"`
	Logging     LoggingConfig          `yaml:"logging"`
	DevBackend  DevBackendConfig       `yaml:"dev_backend"`
}

// Config holds the runtime configuration for the planner.
type Config struct {
	// ProjectDir is the directory where the user ran `planner` from
	ProjectDir string

	// PlannerProjectDir is ProjectDir/.planner
	PlannerProjectDir string

	Project ProjectConfig
}

// InitPlannerDir creates the .planner directory structure in the given
// directory.
//
// Structure created:
// .planner/
// ├── config.yaml
// ├── logs/        <- diagnostics and journey log
// └── downloads/   <- generated plans
func InitPlannerDir(projectDir string) error {
	plannerDir := filepath.Join(projectDir, PlannerDir)

	dirs := []string{
		filepath.Join(plannerDir, "logs"),
		filepath.Join(plannerDir, defaultDownloadDir),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	return ensureProjectConfig(filepath.Join(plannerDir, "config.yaml"))
}

// NewConfig creates a new Config populated from .planner/config.yaml and
// the PLANNER_* environment.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir:        projectDir,
		PlannerProjectDir: filepath.Join(projectDir, PlannerDir),
		Project:           defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.PlannerProjectDir, "logs")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.PlannerProjectDir, "config.yaml")
}

// DownloadDir returns the directory plans are saved into.
func (c *Config) DownloadDir() string {
	return c.Project.Output.DownloadDir
}

// Preferences returns the configured static question tail.
func (c *Config) Preferences() clarify.PreferenceSet {
	if c.Project.Preferences == nil {
		return clarify.DefaultPreferences()
	}
	return *c.Project.Preferences
}

// DevBackendFixture returns the resolved fixture path, or "" for the
// built-in clarifications.
func (c *Config) DevBackendFixture() string {
	return c.Project.DevBackend.Fixture
}

// OverrideServiceBaseURL points this run at raw without touching the
// config file.
func (c *Config) OverrideServiceBaseURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if err := validateBaseURL(raw); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	c.Project.Service.BaseURL = raw
	return nil
}

// SetServiceBaseURL validates raw and writes it to service.base_url in
// .planner/config.yaml. Other keys, comments and runtime overrides are left
// as they are on disk.
func (c *Config) SetServiceBaseURL(raw string) error {
	if err := c.OverrideServiceBaseURL(raw); err != nil {
		return err
	}
	return c.saveServiceBaseURL(c.Project.Service.BaseURL)
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.Project.normalize(c.ProjectDir)
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	parsed := defaultProjectConfig()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize(c.ProjectDir)
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	pc := &c.Project
	if v := strings.TrimSpace(getenv(EnvAPIBase)); v != "" {
		pc.Service.BaseURL = v
	}
	if v := strings.TrimSpace(getenv(EnvTimeout)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: parse %s: %w", EnvTimeout, err)
		}
		pc.Service.Timeout = d
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		pc.Logging.Level = v
	}
	if v := strings.TrimSpace(getenv(EnvDevBackend)); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: parse %s: %w", EnvDevBackend, err)
		}
		pc.DevBackend.Enabled = enabled
	}
	if v := strings.TrimSpace(getenv(EnvDevBackendPort)); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: parse %s: %w", EnvDevBackendPort, err)
		}
		pc.DevBackend.Port = port
	}
	pc.normalize(c.ProjectDir)
	if err := pc.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		Service: ServiceConfig{BaseURL: DefaultBaseURL, Timeout: DefaultTimeout},
		Intake: IntakeConfig{
			Accept:   append([]string(nil), intake.DefaultAccept...),
			MaxBytes: intake.DefaultMaxBytes,
		},
		Output: OutputConfig{DownloadDir: filepath.Join(PlannerDir, defaultDownloadDir)},
		Logging: LoggingConfig{
			Level:      DefaultLogLevel,
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		DevBackend: DevBackendConfig{Host: DefaultDevHost},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	defaults := defaultProjectConfig()
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.Service.BaseURL) == "" {
		pc.Service.BaseURL = defaults.Service.BaseURL
	}
	if pc.Service.Timeout <= 0 {
		pc.Service.Timeout = defaults.Service.Timeout
	}
	if pc.Intake.Accept == nil {
		pc.Intake.Accept = defaults.Intake.Accept
	}
	if pc.Intake.MaxBytes == 0 {
		pc.Intake.MaxBytes = defaults.Intake.MaxBytes
	}
	if strings.TrimSpace(pc.Output.DownloadDir) == "" {
		pc.Output.DownloadDir = defaults.Output.DownloadDir
	}
	if strings.TrimSpace(pc.Logging.Level) == "" {
		pc.Logging.Level = defaults.Logging.Level
	}
	if pc.Logging.MaxSizeMB <= 0 {
		pc.Logging.MaxSizeMB = defaults.Logging.MaxSizeMB
	}
	if pc.Logging.MaxBackups <= 0 {
		pc.Logging.MaxBackups = defaults.Logging.MaxBackups
	}
	if pc.Logging.MaxAgeDays <= 0 {
		pc.Logging.MaxAgeDays = defaults.Logging.MaxAgeDays
	}
	if strings.TrimSpace(pc.DevBackend.Host) == "" {
		pc.DevBackend.Host = defaults.DevBackend.Host
	}
	if pc.Preferences != nil && pc.Preferences.Version == 0 {
		pc.Preferences.Version = clarify.DefaultPreferenceVersion
	}
}

func (pc *ProjectConfig) normalize(base string) {
	pc.Service.BaseURL = strings.TrimRight(strings.TrimSpace(pc.Service.BaseURL), "/")
	accept := pc.Intake.Accept[:0:0]
	for _, ext := range pc.Intake.Accept {
		if ext = intake.NormalizeExt(ext); ext != "" && !contains(accept, ext) {
			accept = append(accept, ext)
		}
	}
	pc.Intake.Accept = accept
	pc.Output.DownloadDir = resolvePath(base, pc.Output.DownloadDir)
	pc.Logging.Level = strings.ToLower(strings.TrimSpace(pc.Logging.Level))
	pc.DevBackend.Host = strings.TrimSpace(pc.DevBackend.Host)
	pc.DevBackend.Fixture = resolvePath(base, pc.DevBackend.Fixture)
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if err := validateBaseURL(pc.Service.BaseURL); err != nil {
		return fmt.Errorf("service.base_url: %w", err)
	}
	if pc.Intake.MaxBytes < 0 {
		return fmt.Errorf("intake.max_bytes must be >= 0")
	}
	switch pc.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	if pc.DevBackend.Port < 0 || pc.DevBackend.Port > 65535 {
		return fmt.Errorf("dev_backend.port must be between 0 and 65535")
	}
	if pc.Preferences != nil {
		if err := pc.Preferences.Validate(); err != nil {
			return fmt.Errorf("preferences: %w", err)
		}
	}
	return nil
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("base url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid base url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base url %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("base url %q has no host", raw)
	}
	return nil
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), target) {
			return true
		}
	}
	return false
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}

func (c *Config) saveServiceBaseURL(baseURL string) error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	path := c.ProjectConfigPath()
	if err := os.MkdirAll(c.PlannerProjectDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure planner dir: %w", err)
	}
	if err := ensureProjectConfig(path); err != nil {
		return fmt.Errorf("config: ensure project config: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode}}}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("config: %s is not a yaml mapping", path)
	}
	service := mappingChild(doc.Content[0], "service", yaml.MappingNode)
	if service.Kind == yaml.ScalarNode && service.Tag == "!!null" {
		service.Kind, service.Tag, service.Value = yaml.MappingNode, "!!map", ""
	}
	if service.Kind != yaml.MappingNode {
		return fmt.Errorf("config: service in %s is not a mapping", path)
	}
	value := mappingChild(service, "base_url", yaml.ScalarNode)
	value.Kind, value.Tag, value.Value, value.Style = yaml.ScalarNode, "!!str", baseURL, 0

	var out strings.Builder
	enc := yaml.NewEncoder(&out)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(path, []byte(out.String()), 0o644); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}

// mappingChild returns the value node for key, appending an empty node of
// kind when the key is missing.
func mappingChild(m *yaml.Node, key string, kind yaml.Kind) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	child := &yaml.Node{Kind: kind}
	if kind == yaml.MappingNode {
		child.Tag = "!!map"
	}
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, child)
	return child
}
