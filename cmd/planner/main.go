// cmd/planner/main.go
//
// This is the entry point for the semester planner CLI.
//
// Flow:
// 1. Initialize .planner/ in the project directory and load its config
// 2. Optionally start the local dev backend and point the client at it
// 3. Run the interview, either as the TUI or as a plain line dialogue

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/kingrea/semester-planner/internal/config"
	"github.com/kingrea/semester-planner/internal/console"
	"github.com/kingrea/semester-planner/internal/devbackend"
	"github.com/kingrea/semester-planner/internal/gateway"
	"github.com/kingrea/semester-planner/internal/intake"
	"github.com/kingrea/semester-planner/internal/logbook"
	"github.com/kingrea/semester-planner/internal/logging"
	"github.com/kingrea/semester-planner/internal/session"
	"github.com/kingrea/semester-planner/internal/tui"
)

func main() {
	os.Exit(run())
}

func run() int {
	projectDir := flag.String("project", "", "path to the project directory (defaults to cwd)")
	plain := flag.Bool("plain", false, "ask the questions as a plain line dialogue instead of the TUI")
	save := flag.Bool("save", true, "save the finished plan into the download directory")
	devBackend := flag.Bool("dev-backend", false, "start the local stand-in service and use it")
	apiBase := flag.String("api", "", "planner service base URL for this run (overrides config and PLANNER_API_BASE, not saved)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: planner [flags] [syllabus]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	project := *projectDir
	if project == "" {
		var err error
		project, err = os.Getwd()
		if err != nil {
			return fail("determine working directory: %v", err)
		}
	}
	project, err := filepath.Abs(project)
	if err != nil {
		return fail("resolve project dir: %v", err)
	}
	if err := config.InitPlannerDir(project); err != nil {
		return fail("init %s: %v", config.PlannerDir, err)
	}
	cfg, err := config.NewConfig(project)
	if err != nil {
		return fail("load config: %v", err)
	}
	if *devBackend {
		cfg.Project.DevBackend.Enabled = true
	}
	if strings.TrimSpace(*apiBase) != "" {
		if err := cfg.OverrideServiceBaseURL(*apiBase); err != nil {
			return fail("api: %v", err)
		}
	}

	logger, err := logging.New(project, logging.FromConfig(cfg.Project.Logging))
	if err != nil {
		return fail("open log: %v", err)
	}
	defer logger.Close()
	zl := logger.Zap()

	journal, err := logbook.New(filepath.Join(cfg.LogsDir(), "journey.log"))
	if err != nil {
		zl.Warn("journey log unavailable", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	baseURL := cfg.Project.Service.BaseURL
	if cfg.Project.DevBackend.Enabled {
		srv, err := startDevBackend(ctx, cfg, zl)
		if err != nil {
			return fail("dev backend: %v", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		baseURL = srv.BaseURL()
	}

	client, err := gateway.NewClient(baseURL,
		gateway.WithTimeout(cfg.Project.Service.Timeout),
		gateway.WithLogger(zl),
	)
	if err != nil {
		return fail("planner service: %v", err)
	}
	zl.Info("planner starting",
		zap.String("project", project),
		zap.String("service", client.BaseURL()),
		zap.Bool("plain", *plain),
	)

	ctrl := session.NewController(client,
		session.WithPreferences(cfg.Preferences()),
		session.WithAccept(cfg.Project.Intake.Accept),
		session.WithLogger(zl),
		session.WithJournal(journal),
	)

	saveDir := ""
	if *save {
		saveDir = cfg.DownloadDir()
	}

	if *plain {
		return runPlain(ctx, cfg, ctrl, client, saveDir, flag.Arg(0))
	}

	app := tui.NewApp(ctrl,
		tui.WithSaver(client, saveDir),
		tui.WithHealthCheck(client),
		tui.WithLogbook(journal),
		tui.WithRequestTimeout(cfg.Project.Service.Timeout),
		tui.WithFileLoader(func(path string) (gateway.File, error) {
			return intake.Load(path, cfg.Project.Intake.MaxBytes)
		}),
	)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fail("run TUI: %v", err)
	}
	return 0
}

func runPlain(ctx context.Context, cfg *config.Config, ctrl *session.Controller, saver console.Saver, saveDir, path string) int {
	if strings.TrimSpace(path) == "" {
		fmt.Fprintln(os.Stderr, "planner: -plain needs a syllabus path")
		return 2
	}
	file, err := intake.Load(path, cfg.Project.Intake.MaxBytes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "planner: %v\n", err)
		return 1
	}
	iv := console.New(ctrl, os.Stdin, os.Stdout, console.WithSave(saver, saveDir))
	if err := iv.Run(ctx, file); err != nil {
		return 1
	}
	return 0
}

func startDevBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*devbackend.Server, error) {
	settings := devbackend.SettingsFromConfig(cfg)
	fixture, err := devbackend.LoadFixture(settings.Fixture)
	if err != nil {
		return nil, err
	}
	srv := devbackend.NewServer(settings,
		devbackend.WithFixture(fixture),
		devbackend.WithLogger(logger),
	)
	if err := srv.Start(ctx); err != nil {
		return nil, err
	}
	return srv, nil
}

func fail(format string, args ...any) int {
	fmt.Fprintf(os.Stderr, "planner: "+format+"\n", args...)
	return 1
}
