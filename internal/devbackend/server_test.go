package devbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kingrea/semester-planner/internal/config"
	"github.com/kingrea/semester-planner/internal/gateway"
	"github.com/kingrea/semester-planner/internal/idgen"
	"github.com/kingrea/semester-planner/internal/session"
)

var pdf = []byte("%PDF-1.4\n%dev backend test\n")

func startServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	settings := Settings{Enabled: true, Host: "127.0.0.1", Port: 0, ReadTimeout: time.Second, WriteTimeout: time.Second, IdleTimeout: time.Second}
	srv := NewServer(settings, append([]Option{WithSessionIDs(idgen.Sequence("sess-"))}, opts...)...)
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start server: %v", err)
	}
	return srv
}

func newClient(t *testing.T, srv *Server) *gateway.Client {
	t.Helper()
	client, err := gateway.NewClient(srv.BaseURL(), gateway.WithTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestSettingsFromConfigHonorsEnv(t *testing.T) {
	t.Setenv(EnvHost, "0.0.0.0")
	t.Setenv(EnvSessionTTL, "5m")
	cfg := &config.Config{}
	cfg.Project.DevBackend = config.DevBackendConfig{Enabled: true, Port: 9001}
	cfg.Project.Intake.MaxBytes = 2048
	settings := SettingsFromConfig(cfg)
	if settings.Port != 9001 || !settings.Enabled {
		t.Fatalf("expected enabled server on 9001, got %+v", settings)
	}
	if settings.Host != "0.0.0.0" {
		t.Fatalf("expected host override, got %s", settings.Host)
	}
	if settings.SessionTTL != 5*time.Minute {
		t.Fatalf("expected ttl override, got %s", settings.SessionTTL)
	}
	if settings.MaxUploadBytes != 2048 {
		t.Fatalf("expected upload limit from intake config, got %d", settings.MaxUploadBytes)
	}
}

func TestStartDisabled(t *testing.T) {
	srv := NewServer(Settings{})
	if err := srv.Start(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	if srv.Status() != StatusStarting {
		t.Fatalf("unexpected status %s", srv.Status())
	}
}

func TestFullSessionThroughGateway(t *testing.T) {
	srv := startServer(t)
	client := newClient(t, srv)
	ctx := context.Background()

	health, err := client.Health(ctx)
	if err != nil || !health.Online() {
		t.Fatalf("health = %+v, %v", health, err)
	}

	start, err := client.StartSession(ctx, gateway.File{Name: "syllabus.pdf", Data: pdf})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if start.SessionID != "sess-1" || len(start.Clarifications) != 4 {
		t.Fatalf("unexpected start result %+v", start)
	}
	if start.Clarifications[2].Context != "Unit 1: Introduction" {
		t.Fatalf("context not carried: %+v", start.Clarifications[2])
	}

	answers := map[string]string{
		"credits":           "4",
		"exam_weightage":    "30/70",
		"unit_1_hours":      "12",
		"unit_1_importance": "IMP",
		"difficulty":        "yes",
		"revision":          "no",
	}
	result, err := client.FinalizeSession(ctx, start.SessionID, answers)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if result.Version != "v1" {
		t.Fatalf("version = %q, want v1", result.Version)
	}

	var buf bytes.Buffer
	name, err := client.Download(ctx, result.Version, &buf)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if name != "semester_plan_v1.json" {
		t.Fatalf("unexpected file name %q", name)
	}
	var artifact Artifact
	if err := json.Unmarshal(buf.Bytes(), &artifact); err != nil {
		t.Fatalf("artifact is not JSON: %v", err)
	}
	if artifact.DifficultyMultiplier != 1.3 || artifact.RevisionWeeks != 0 || artifact.Answers["credits"] != "4" {
		t.Fatalf("unexpected artifact %+v", artifact)
	}

	again, err := client.FinalizeSession(ctx, start.SessionID, answers)
	if err != nil || again.Version != "v2" {
		t.Fatalf("second finalize = %+v, %v", again, err)
	}
}

func TestUploadRejectsUnsupportedFormat(t *testing.T) {
	client := newClient(t, startServer(t))
	_, err := client.StartSession(context.Background(), gateway.File{Name: "notes.txt", Data: []byte("just some text")})
	if !errors.Is(err, gateway.ErrExtraction) {
		t.Fatalf("expected extraction error, got %v", err)
	}
	if msg := gateway.Message(err); msg != "unsupported format" {
		t.Fatalf("message = %q", msg)
	}
}

func TestRefineErrors(t *testing.T) {
	client := newClient(t, startServer(t))
	ctx := context.Background()

	_, err := client.FinalizeSession(ctx, "missing", map[string]string{"a": "b"})
	if !errors.Is(err, gateway.ErrRefinement) || gateway.Message(err) != "Session not found" {
		t.Fatalf("expected Session not found, got %v", err)
	}

	start, err := client.StartSession(ctx, gateway.File{Name: "syllabus.pdf", Data: pdf})
	if err != nil {
		t.Fatal(err)
	}
	_, err = client.FinalizeSession(ctx, start.SessionID, map[string]string{
		"credits": "four", "exam_weightage": "30/70", "unit_1_hours": "12", "unit_1_importance": "IMP",
	})
	if !errors.Is(err, gateway.ErrRefinement) || gateway.Message(err) != "credits must be a whole number" {
		t.Fatalf("expected numeric validation error, got %v", err)
	}

	var buf bytes.Buffer
	if _, err := client.Download(ctx, "v9", &buf); gateway.Message(err) != "File not found" {
		t.Fatalf("expected File not found, got %v", err)
	}
}

func TestControllerAgainstDevBackend(t *testing.T) {
	fx := Fixture{
		Subject:        "Algorithms",
		Clarifications: []Clarification{{Field: "credits", Question: "Credits?"}},
		NumericFields:  []string{"credits"},
	}
	srv := startServer(t, WithFixture(fx))
	c := session.NewController(newClient(t, srv))
	ctx := context.Background()

	answerAll := func(answers ...string) error {
		if err := c.SubmitFile(ctx, gateway.File{Name: "algo.pdf", Data: pdf}); err != nil {
			t.Fatalf("submit file: %v", err)
		}
		var err error
		for _, answer := range answers {
			if err = c.SubmitAnswer(ctx, answer); err != nil {
				break
			}
		}
		return err
	}

	err := answerAll("six", "yes", "no")
	if !errors.Is(err, gateway.ErrRefinement) {
		t.Fatalf("expected refinement error, got %v", err)
	}
	if st := c.State(); !st.CanRetry() || st.Message != "credits must be a whole number" {
		t.Fatalf("unexpected state after rejection %+v", st.Snapshot())
	}

	c.Reset()
	if err := answerAll("6", "yes", "no"); err != nil {
		t.Fatalf("second interview: %v", err)
	}
	st := c.State()
	if st.Phase != session.PhaseResult || st.Version() != "v1" {
		t.Fatalf("unexpected final state %+v", st.Snapshot())
	}
	if got := c.DownloadURL(); got != srv.BaseURL()+"/download/v1" {
		t.Fatalf("download url = %s", got)
	}
}

func TestLoadFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	body := `
subject: Databases
clarifications:
  - field: credits
    question: How many credits?
  - field: unit_2_importance
    context: Unit 2
    question: Is Unit 2 high priority?
numeric_fields: [credits]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	fx, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	if fx.Subject != "Databases" || len(fx.Clarifications) != 2 || !fx.numeric("credits") {
		t.Fatalf("unexpected fixture %+v", fx)
	}

	if err := os.WriteFile(path, []byte("clarifications:\n  - field: a\n    question: A?\n  - field: a\n    question: B?\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFixture(path); err == nil {
		t.Fatalf("expected duplicate field error")
	}
	if fx, err := LoadFixture(""); err != nil || len(fx.Clarifications) != 4 {
		t.Fatalf("default fixture = %+v, %v", fx, err)
	}
}

func TestUnknownRouteUsesDetail(t *testing.T) {
	srv := startServer(t)
	resp, err := http.Get(srv.BaseURL() + "/nope")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound || body["detail"] != "Not Found" {
		t.Fatalf("unexpected response %d %v", resp.StatusCode, body)
	}
}
