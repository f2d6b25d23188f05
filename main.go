package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/nissyi-gh/flowboard/internal/api"
	"github.com/nissyi-gh/flowboard/internal/api/apitest"
	"github.com/nissyi-gh/flowboard/internal/board"
	"github.com/nissyi-gh/flowboard/internal/columns"
	"github.com/nissyi-gh/flowboard/internal/config"
	"github.com/nissyi-gh/flowboard/internal/importer"
	"github.com/nissyi-gh/flowboard/internal/live"
	"github.com/nissyi-gh/flowboard/internal/logging"
	"github.com/nissyi-gh/flowboard/internal/model"
	"github.com/nissyi-gh/flowboard/internal/notify"
	"github.com/nissyi-gh/flowboard/internal/store"
	"github.com/nissyi-gh/flowboard/internal/team"
	"github.com/nissyi-gh/flowboard/internal/ui"
)

const (
	maxToasts       = 3
	shutdownTimeout = 5 * time.Second
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := flag.NewFlagSet("flowboard", flag.ContinueOnError)
	demo := flags.Bool("demo", false, "run against an in-memory demo backend")
	projectFlag := flags.String("project", "", "project id, overrides FLOWBOARD_PROJECT_ID")
	flags.Usage = func() {
		fmt.Fprintln(flags.Output(), "usage: flowboard [--demo] [--project id] [import <file.yaml>]")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.NewEnvReader().Read()
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	logger, closer, err := logging.Open(cfg.Env, cfg.Storage.LogPath)
	if err != nil {
		return err
	}
	defer closer.Close()

	baseURL, liveURL := cfg.API.BaseURL, cfg.API.LiveURL
	projectID := cfg.Board.ProjectID
	if *projectFlag != "" {
		projectID = *projectFlag
	}
	if *demo {
		srv := apitest.Demo().Start()
		defer srv.Close()
		baseURL = srv.URL
		liveURL = "ws" + strings.TrimPrefix(srv.URL, "http") + "/live"
		projectID = apitest.DemoProjectID
		logger.Info().Str("url", srv.URL).Msg("serving demo backend")
	}
	client := api.New(baseURL, cfg.API.Token, cfg.API.Timeout, logger)

	prefs, err := store.NewPrefStore(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("open preferences: %w", err)
	}
	defer prefs.Close()

	if projectID == "" {
		last, ok, err := prefs.LastProject()
		if err != nil {
			return fmt.Errorf("read last project: %w", err)
		}
		if !ok {
			return errors.New("no project selected: set FLOWBOARD_PROJECT_ID or pass --project")
		}
		projectID = last
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	current := team.StaticUser{ID: cfg.User.ID, Name: cfg.User.Name}
	resolver := team.NewResolver(client, current, cfg.User.AdminID, logger)

	if flags.Arg(0) == "import" {
		return runImport(ctx, client, resolver, projectID, flags.Arg(1))
	}

	dispatcher := notify.NewDispatcher(client, cfg.Notify.QueueSize, logger)
	dispatcher.Start(cfg.Notify.Workers)
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		if err := dispatcher.Shutdown(sctx); err != nil {
			logger.Warn().Err(err).Msg("notifications not drained")
		}
	}()

	toasts := notify.NewToasts(cfg.Board.ToastTTL, maxToasts)
	b := board.New(client, toasts, logger, board.Options{
		DoneColumnID: cfg.Board.DoneColumnID,
		CurrentUser:  current,
		Announcer:    dispatcher,
	})

	var changes chan live.Change
	if liveURL != "" {
		changes = make(chan live.Change, 16)
		go runFeed(ctx, live.NewSubscriber(liveURL, cfg.API.Token, logger), projectID, changes, logger)
	}

	logger.Info().
		Str("project_id", projectID).
		Str("api", baseURL).
		Bool("live", liveURL != "").
		Msg("starting board")

	m := ui.NewModel(ui.Options{
		Context:   ctx,
		ProjectID: projectID,
		Backend:   client,
		Board:     b,
		Toasts:    toasts,
		Resolver:  resolver,
		Prefs:     prefs,
		Changes:   changes,
		Logger:    logger,
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run program: %w", err)
	}
	return nil
}

func runFeed(ctx context.Context, sub *live.Subscriber, projectID string, out chan<- live.Change, logger zerolog.Logger) {
	if err := sub.Run(ctx, projectID, out); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("change feed stopped")
	}
}

func runImport(ctx context.Context, client *api.Client, resolver *team.Resolver, projectID, path string) error {
	if path == "" {
		return errors.New("usage: flowboard import <file.yaml>")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	project, err := client.GetProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("load project %s: %w", projectID, err)
	}
	var lookups []model.StatusLookup
	if len(project.Columns) == 0 {
		if lookups, err = client.GetStatusLookups(ctx); err != nil {
			return fmt.Errorf("load status lookups: %w", err)
		}
	}

	target := importer.Target{
		ProjectID: project.ID,
		Columns:   columns.Build(project.Columns, lookups),
		Users:     resolver.Resolve(ctx, project.TeamMembers, nil),
	}
	created, err := importer.Import(ctx, client, target, string(data))
	fmt.Printf("Imported %d tasks into %s\n", len(created), project.Name)
	return err
}
