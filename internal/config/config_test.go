package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestConfig(t *testing.T, configYAML string) *Config {
	t.Helper()
	projectDir := t.TempDir()
	plannerDir := filepath.Join(projectDir, PlannerDir)
	if err := os.MkdirAll(plannerDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if configYAML != "" {
		if err := os.WriteFile(filepath.Join(plannerDir, "config.yaml"), []byte(strings.TrimSpace(configYAML)), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return &Config{ProjectDir: projectDir, PlannerProjectDir: plannerDir, Project: defaultProjectConfig()}
}

func TestLoadProjectConfigDefaultsWhenMissing(t *testing.T) {
	c := newTestConfig(t, "")
	if err := c.loadProjectConfig(); err != nil {
		t.Fatalf("loadProjectConfig returned error: %v", err)
	}
	if c.Project.Version != 1 {
		t.Fatalf("expected default version == 1, got %d", c.Project.Version)
	}
	if c.Project.Service.BaseURL != DefaultBaseURL {
		t.Fatalf("expected default base url, got %q", c.Project.Service.BaseURL)
	}
	if want := filepath.Join(c.ProjectDir, PlannerDir, "downloads"); c.DownloadDir() != want {
		t.Fatalf("expected download dir %s, got %s", want, c.DownloadDir())
	}
	prefs := c.Preferences()
	if len(prefs.Questions) != 2 || prefs.Questions[0].Field != "difficulty" {
		t.Fatalf("expected built-in preferences, got %+v", prefs)
	}
}

func TestLoadProjectConfigParsesYaml(t *testing.T) {
	c := newTestConfig(t, `
version: 1
service:
  base_url: https://planner.example.com/api/
  timeout: 45s
intake:
  accept: [PDF, docx, .pdf]
  max_bytes: 1024
preferences:
  questions:
    - field: pace
      question: "Do you prefer a steady pace? (yes/no)"
output:
  download_dir: plans
logging:
  level: DEBUG
dev_backend:
  enabled: true
  port: 9001
  fixture: fixtures/clarifications.yaml
`)
	if err := c.loadProjectConfig(); err != nil {
		t.Fatalf("loadProjectConfig returned error: %v", err)
	}
	pc := c.Project
	if pc.Service.BaseURL != "https://planner.example.com/api" {
		t.Fatalf("base url not normalized: %q", pc.Service.BaseURL)
	}
	if pc.Service.Timeout != 45*time.Second {
		t.Fatalf("unexpected timeout %s", pc.Service.Timeout)
	}
	if got := strings.Join(pc.Intake.Accept, ","); got != ".pdf,.docx" {
		t.Fatalf("accept not normalized: %s", got)
	}
	if pc.Intake.MaxBytes != 1024 {
		t.Fatalf("unexpected max bytes %d", pc.Intake.MaxBytes)
	}
	prefs := c.Preferences()
	if prefs.Version != 1 || len(prefs.Questions) != 1 || prefs.Questions[0].Field != "pace" {
		t.Fatalf("unexpected preferences %+v", prefs)
	}
	if c.DownloadDir() != filepath.Join(c.ProjectDir, "plans") {
		t.Fatalf("download dir not resolved: %s", c.DownloadDir())
	}
	if pc.Logging.Level != "debug" {
		t.Fatalf("log level not normalized: %s", pc.Logging.Level)
	}
	if pc.Logging.MaxBackups != 5 {
		t.Fatalf("expected default max backups, got %d", pc.Logging.MaxBackups)
	}
	if !pc.DevBackend.Enabled || pc.DevBackend.Port != 9001 || pc.DevBackend.Host != DefaultDevHost {
		t.Fatalf("unexpected dev backend %+v", pc.DevBackend)
	}
	if !strings.HasPrefix(c.DevBackendFixture(), c.ProjectDir) {
		t.Fatalf("fixture path not resolved: %s", c.DevBackendFixture())
	}
}

func TestLoadProjectConfigValidation(t *testing.T) {
	cases := map[string]string{
		"scheme": `
service:
  base_url: ftp://planner.example.com`,
		"level": `
logging:
  level: verbose`,
		"port": `
dev_backend:
  port: 70000`,
		"duplicate preference": `
preferences:
  questions:
    - field: pace
      question: One?
    - field: pace
      question: Two?`,
	}
	for name, configYAML := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestConfig(t, configYAML)
			if err := c.loadProjectConfig(); err == nil {
				t.Fatalf("expected validation error but got none")
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	c := newTestConfig(t, "")
	if err := c.loadProjectConfig(); err != nil {
		t.Fatal(err)
	}
	env := map[string]string{
		EnvAPIBase:        "http://10.0.0.5:8000/",
		EnvTimeout:        "5s",
		EnvLogLevel:       "warn",
		EnvDevBackend:     "true",
		EnvDevBackendPort: "8123",
	}
	if err := c.applyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("applyEnv returned error: %v", err)
	}
	pc := c.Project
	if pc.Service.BaseURL != "http://10.0.0.5:8000" || pc.Service.Timeout != 5*time.Second {
		t.Fatalf("service overrides not applied: %+v", pc.Service)
	}
	if pc.Logging.Level != "warn" || !pc.DevBackend.Enabled || pc.DevBackend.Port != 8123 {
		t.Fatalf("overrides not applied: %+v %+v", pc.Logging, pc.DevBackend)
	}

	env[EnvTimeout] = "soon"
	if err := c.applyEnv(func(k string) string { return env[k] }); err == nil {
		t.Fatalf("expected error for invalid timeout")
	}
}

func TestNewConfigReadsEnvironment(t *testing.T) {
	projectDir := t.TempDir()
	t.Setenv(EnvAPIBase, "https://planner.test")
	cfg, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if cfg.Project.Service.BaseURL != "https://planner.test" {
		t.Fatalf("env override ignored: %s", cfg.Project.Service.BaseURL)
	}
}

func TestInitPlannerDirAndSetServiceBaseURL(t *testing.T) {
	projectDir := t.TempDir()
	if err := InitPlannerDir(projectDir); err != nil {
		t.Fatalf("InitPlannerDir returned error: %v", err)
	}
	for _, dir := range []string{"logs", "downloads"} {
		if info, err := os.Stat(filepath.Join(projectDir, PlannerDir, dir)); err != nil || !info.IsDir() {
			t.Fatalf("expected %s directory: %v", dir, err)
		}
	}

	c := &Config{ProjectDir: projectDir, PlannerProjectDir: filepath.Join(projectDir, PlannerDir), Project: defaultProjectConfig()}
	if err := c.loadProjectConfig(); err != nil {
		t.Fatalf("default config file does not load: %v", err)
	}
	if err := c.SetServiceBaseURL("not a url"); err == nil {
		t.Fatalf("expected invalid base url to be rejected")
	}
	if err := c.SetServiceBaseURL("https://planner.example.com"); err != nil {
		t.Fatalf("SetServiceBaseURL returned error: %v", err)
	}

	reloaded := &Config{ProjectDir: projectDir, PlannerProjectDir: c.PlannerProjectDir, Project: defaultProjectConfig()}
	if err := reloaded.loadProjectConfig(); err != nil {
		t.Fatalf("reload returned error: %v", err)
	}
	if reloaded.Project.Service.BaseURL != "https://planner.example.com" {
		t.Fatalf("base url not persisted: %s", reloaded.Project.Service.BaseURL)
	}
	if reloaded.Project.Service.Timeout != DefaultTimeout {
		t.Fatalf("timeout not persisted: %s", reloaded.Project.Service.Timeout)
	}
}

func TestSetServiceBaseURLKeepsRuntimeOverridesOffDisk(t *testing.T) {
	projectDir := t.TempDir()
	if err := InitPlannerDir(projectDir); err != nil {
		t.Fatalf("InitPlannerDir returned error: %v", err)
	}
	t.Setenv(EnvTimeout, "5s")
	cfg, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	cfg.Project.DevBackend.Enabled = true
	if err := cfg.SetServiceBaseURL("http://example.com"); err != nil {
		t.Fatalf("SetServiceBaseURL returned error: %v", err)
	}

	data, err := os.ReadFile(cfg.ProjectConfigPath())
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.Contains(text, "# Where the planner service listens.") {
		t.Fatalf("comments were dropped from config.yaml:\n%s", text)
	}
	if strings.Contains(text, projectDir) {
		t.Fatalf("resolved absolute paths leaked into config.yaml:\n%s", text)
	}

	t.Setenv(EnvTimeout, "")
	reloaded, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("reload returned error: %v", err)
	}
	if reloaded.Project.Service.BaseURL != "http://example.com" {
		t.Fatalf("base url not persisted: %s", reloaded.Project.Service.BaseURL)
	}
	if reloaded.Project.DevBackend.Enabled {
		t.Fatalf("runtime dev backend flag was persisted")
	}
	if reloaded.Project.Service.Timeout != 2*time.Minute {
		t.Fatalf("env timeout was persisted: %s", reloaded.Project.Service.Timeout)
	}
}

func TestSetServiceBaseURLAddsMissingServiceSection(t *testing.T) {
	c := newTestConfig(t, "version: 1\nlogging:\n  level: debug\n")
	if err := c.SetServiceBaseURL("https://planner.example.com"); err != nil {
		t.Fatalf("SetServiceBaseURL returned error: %v", err)
	}
	reloaded := &Config{ProjectDir: c.ProjectDir, PlannerProjectDir: c.PlannerProjectDir, Project: defaultProjectConfig()}
	if err := reloaded.loadProjectConfig(); err != nil {
		t.Fatalf("reload returned error: %v", err)
	}
	if reloaded.Project.Service.BaseURL != "https://planner.example.com" || reloaded.Project.Logging.Level != "debug" {
		t.Fatalf("unexpected reloaded config %+v", reloaded.Project)
	}
}

func TestOverrideServiceBaseURLDoesNotWrite(t *testing.T) {
	projectDir := t.TempDir()
	if err := InitPlannerDir(projectDir); err != nil {
		t.Fatalf("InitPlannerDir returned error: %v", err)
	}
	cfg, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	before, err := os.ReadFile(cfg.ProjectConfigPath())
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.OverrideServiceBaseURL("ftp://nope"); err == nil {
		t.Fatalf("expected invalid base url to be rejected")
	}
	if err := cfg.OverrideServiceBaseURL(" http://10.0.0.5:8000 "); err != nil {
		t.Fatalf("OverrideServiceBaseURL returned error: %v", err)
	}
	if cfg.Project.Service.BaseURL != "http://10.0.0.5:8000" {
		t.Fatalf("override not applied: %s", cfg.Project.Service.BaseURL)
	}
	after, err := os.ReadFile(cfg.ProjectConfigPath())
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Fatalf("override rewrote config.yaml")
	}
}
