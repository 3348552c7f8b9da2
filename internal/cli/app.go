package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"semnotes/config"
	"semnotes/internal/adapter/embedding"
	"semnotes/internal/adapter/fs"
	"semnotes/internal/adapter/memstore"
	"semnotes/internal/adapter/notifier"
	"semnotes/internal/adapter/sqlstore"
	"semnotes/internal/adapter/store"
	"semnotes/internal/logging"
	"semnotes/internal/port"
	"semnotes/internal/usecase"
)

// app holds the wired components shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    port.NoteStore
	tracker  port.EmbeddingTracker // nil for the memory backend
	embedder port.Embedder
	hub      *notifier.Hub

	capture *usecase.CaptureUseCase
	reindex *usecase.ReindexUseCase
	search  *usecase.SearchUseCase
	notes   *usecase.NotesUseCase
	imports *usecase.ImportUseCase
}

// openApp builds the logger, embedder, store and use cases from the loaded
// configuration and starts the change notifier. Callers must call close.
func openApp(ctx context.Context) (*app, error) {
	cfg := GetConfig()

	logger, err := logging.New(os.Stderr, cfg.Logging)
	if err != nil {
		return nil, err
	}

	embedder, err := embedding.New(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, embedder: embedder}
	if err := a.openStore(); err != nil {
		return nil, err
	}

	a.hub = notifier.NewHub(cfg.Notifier.Buffer, logger)
	go a.hub.Run(ctx)

	a.capture = usecase.NewCaptureUseCase(a.store, embedder, a.hub, cfg, logger)
	a.reindex = usecase.NewReindexUseCase(a.store, embedder, a.hub, cfg, logger)
	a.search = usecase.NewSearchUseCase(a.store, embedder, cfg, logger)
	a.notes = usecase.NewNotesUseCase(a.store, a.hub, logger)
	a.imports = usecase.NewImportUseCase(
		a.capture,
		fs.NewWalker(cfg.Import.Includes, cfg.Import.Excludes, cfg.Import.MaxFileBytes),
		logger,
	)
	return a, nil
}

func (a *app) openStore() error {
	dir := GetRootDir()
	dimension := a.embedder.Dimension()

	switch a.cfg.Store.Backend {
	case "memory":
		a.store = memstore.NewMemoryStore(dimension)
		return nil
	case "sqlite":
		st, err := sqlstore.NewStore(a.cfg.StorePath(dir), dimension)
		if err != nil {
			return fmt.Errorf("failed to open note store: %w", err)
		}
		a.store, a.tracker = st, st
	case "bolt":
		if a.cfg.Store.Path == "" {
			if err := config.EnsureDataDir(dir); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		st, err := store.NewBoltNoteStore(a.cfg.StorePath(dir), dimension)
		if err != nil {
			return fmt.Errorf("failed to open note store: %w", err)
		}
		a.store, a.tracker = st, st
	default:
		return fmt.Errorf("unsupported store backend: %s", a.cfg.Store.Backend)
	}

	check, err := a.tracker.CheckEmbedding(a.cfg.EmbeddingHash())
	if err != nil {
		a.store.Close()
		return err
	}
	if check.NeedsReindex {
		a.logger.Warn("stored vectors may not match the embedding model; run `semnotes reindex --all`", "reason", check.Reason)
	} else if err := a.tracker.MarkEmbedding(a.cfg.EmbeddingHash()); err != nil {
		a.store.Close()
		return fmt.Errorf("failed to record embedding configuration: %w", err)
	}
	return nil
}

func (a *app) close() {
	a.hub.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close note store", "error", err)
	}
}

// newProgress returns a progress callback that draws a bar on stderr once
// the total is known.
func newProgress(label string) func(done, total int) {
	var (
		bar   *progressbar.ProgressBar
		start time.Time
	)
	return func(done, total int) {
		if bar == nil {
			start = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]"+label+"[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(os.Stderr)
				}),
			)
		}

		bar.Set(done)
		if done > 0 && done < total {
			rate := float64(done) / time.Since(start).Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-done)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]%s[reset] ETA: %s", label, formatDuration(eta)))
			}
		}
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
