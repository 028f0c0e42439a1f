package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/yourusername/devlog/pkg/commitwatch"
	"github.com/yourusername/devlog/pkg/config"
	"github.com/yourusername/devlog/pkg/journal"
	"github.com/yourusername/devlog/pkg/linkage"
	"github.com/yourusername/devlog/pkg/logger"
	"github.com/yourusername/devlog/pkg/repometa"
	"github.com/yourusername/devlog/pkg/server"
	"github.com/yourusername/devlog/pkg/tracker"
	"github.com/yourusername/devlog/pkg/workspace"
)

// loadConfig loads configuration from the given path or the defaults.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

// serveCommand runs the tracking daemon.
type serveCommand struct {
	addr       string
	configPath string
}

// Execute runs the daemon until interrupted.
func (c *serveCommand) Execute() error {
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if c.addr != "" {
		cfg.Server.Addr = c.addr
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Output: cfg.Logging.Output,
		Format: cfg.Logging.Format,
	})

	// Durable journal for pending sessions and local history.
	jrnl, err := journal.New(journal.Config{
		DBPath: cfg.Storage.JournalPath,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer func() {
		if closeErr := jrnl.Close(); closeErr != nil {
			log.Error("failed to close journal", "error", closeErr)
		}
	}()

	// Workspace store. The daemon cannot run without one: sessions and
	// tasks live there.
	store, err := workspace.New(workspace.Config{
		APIToken:           cfg.Workspace.APIToken,
		BaseURL:            cfg.Workspace.BaseURL,
		ProjectsDatabaseID: cfg.Workspace.ProjectsDatabaseID,
		TasksDatabaseID:    cfg.Workspace.TasksDatabaseID,
		SessionsDatabaseID: cfg.Workspace.SessionsDatabaseID,
		RequestTimeout:     cfg.Workspace.RequestTimeout,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create workspace store: %w", err)
	}

	// Session engine, restoring the pending queue from the journal.
	eng := tracker.New(tracker.Config{
		HeartbeatQuantum:   cfg.Session.HeartbeatInterval,
		InactivityTimeout:  time.Duration(cfg.Session.InactivityTimeout) * time.Second,
		MinSessionDuration: time.Duration(cfg.Session.MinSessionDuration) * time.Second,
	}, store, jrnl, log)
	defer func() {
		if closeErr := eng.Close(); closeErr != nil {
			log.Error("failed to close engine", "error", closeErr)
		}
	}()

	pending, err := jrnl.PendingIDs()
	if err != nil {
		log.Warn("failed to restore pending sessions", "error", err)
	} else {
		eng.SeedPending(pending)
	}

	fetcher := repometa.New(repometa.Config{}, log)
	coord := linkage.New(store, eng, fetcher, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Commit spool watcher, if configured.
	if cfg.CommitWatch.SpoolDir != "" {
		cw, watchErr := commitwatch.New(commitwatch.Config{
			SpoolDir:         cfg.CommitWatch.SpoolDir,
			DebounceInterval: cfg.CommitWatch.DebounceInterval,
		}, log)
		if watchErr != nil {
			return fmt.Errorf("failed to create commit watcher: %w", watchErr)
		}
		defer func() {
			if closeErr := cw.Close(); closeErr != nil {
				log.Error("failed to close commit watcher", "error", closeErr)
			}
		}()

		if startErr := cw.Start(ctx); startErr != nil {
			return fmt.Errorf("failed to start commit watcher: %w", startErr)
		}

		go consumeCommits(ctx, cw, coord, log)
	}

	srv := server.New(server.Config{
		Addr:           cfg.Server.Addr,
		RequestTimeout: cfg.Server.RequestTimeout,
	}, eng, coord, log)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start()
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	return <-serveErr
}

// consumeCommits feeds spool events to the coordinator until the context
// ends or the watcher closes its channels.
func consumeCommits(ctx context.Context, cw commitwatch.Watcher, coord linkage.Coordinator, log logger.Logger) {
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-cw.Commits():
			if !ok {
				return
			}

			taskID, err := coord.ProcessCommit(ctx, ev.Info)
			if err != nil {
				log.Error("failed to process commit",
					"hash", ev.Info.Hash,
					"error", err)
				continue
			}

			log.Info("commit linked",
				"hash", ev.Info.Hash,
				"task_id", taskID)

		case err, ok := <-cw.Errors():
			if !ok {
				return
			}
			log.Warn("commit watcher error", "error", err)
		}
	}
}

// sessionsCommand lists locally recorded sessions.
type sessionsCommand struct {
	format     string
	configPath string
}

// Execute prints the recorded sessions.
func (c *sessionsCommand) Execute() error {
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	jrnl, err := journal.New(journal.Config{
		DBPath: cfg.Storage.JournalPath,
	}, logger.Noop())
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer func() {
		_ = jrnl.Close()
	}()

	sessions, err := jrnl.Sessions()
	if err != nil {
		return err
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Start.Before(sessions[j].Start)
	})

	switch c.format {
	case "json":
		return printSessionsJSON(sessions)
	case "table":
		return printSessionsTable(sessions)
	default:
		return fmt.Errorf("unknown format: %s", c.format)
	}
}

func printSessionsJSON(sessions []tracker.SessionSnapshot) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(sessions)
}

func printSessionsTable(sessions []tracker.SessionSnapshot) error {
	if len(sessions) == 0 {
		fmt.Println("No recorded sessions.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTART\tEND\tIDE\tBROWSER\tFILES\t+\t-")

	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%dm\t%dm\t%d\t%d\t%d\n",
			s.Name,
			s.Start.Local().Format("2006-01-02 15:04"),
			s.End.Local().Format("15:04"),
			s.EditorMinutes,
			s.BrowserMinutes,
			s.CodeStats.FilesChanged,
			s.CodeStats.LinesAdded,
			s.CodeStats.LinesRemoved)
	}

	return w.Flush()
}

// pendingCommand lists sessions awaiting task linkage.
type pendingCommand struct {
	configPath string
}

// Execute prints the pending session IDs.
func (c *pendingCommand) Execute() error {
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	jrnl, err := journal.New(journal.Config{
		DBPath: cfg.Storage.JournalPath,
	}, logger.Noop())
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer func() {
		_ = jrnl.Close()
	}()

	ids, err := jrnl.PendingIDs()
	if err != nil {
		return err
	}

	if len(ids) == 0 {
		fmt.Println("No sessions awaiting linkage.")
		return nil
	}

	fmt.Printf("%d session(s) awaiting linkage to a task:\n", len(ids))
	for _, id := range ids {
		fmt.Printf("  %s\n", id)
	}

	return nil
}
