package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/bkyoung/branch-review/internal/adapter/cli"
	"github.com/bkyoung/branch-review/internal/adapter/git"
	"github.com/bkyoung/branch-review/internal/adapter/observability"
	"github.com/bkyoung/branch-review/internal/adapter/store/sqlite"
	"github.com/bkyoung/branch-review/internal/adapter/tui"
	"github.com/bkyoung/branch-review/internal/config"
	"github.com/bkyoung/branch-review/internal/domain"
	"github.com/bkyoung/branch-review/internal/usecase/review"
	"github.com/bkyoung/branch-review/internal/version"
)

func main() {
	if err := run(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func run() error {
	// Cancellable context with signal handling for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPaths: defaultConfigPaths(),
		FileName:    "br",
		EnvPrefix:   "BR",
	})
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	logger := buildLogger(cfg.Observability.Logging)

	// Stores opened per invocation live until process exit for CLI commands;
	// the viewer closes its own on shutdown.
	var openStores []*sqlite.Store
	defer func() {
		for _, s := range openStores {
			_ = s.Close()
		}
	}()

	buildService := func(baseRef, repoDir, fallbackAuthor string) (*review.Service, error) {
		st, err := sqlite.NewStore(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open review store: %w", err)
		}
		openStores = append(openStores, st)

		engine := git.NewEngine(resolveRepoDir(repoDir, cfg.Git.RepositoryDir))
		opts := review.Options{
			BaseRef:        firstNonEmpty(baseRef, cfg.Review.BaseRef),
			Author:         cfg.Review.Author,
			PollInterval:   cfg.Review.ParsedPollInterval(),
			FallbackAuthor: fallbackAuthor,
		}
		return review.NewService(engine, st, logger, opts), nil
	}

	root := cli.NewRootCommand(cli.Dependencies{
		Provider: func(baseRef, repoDir string) (cli.Service, error) {
			return buildService(baseRef, repoDir, "Agent")
		},
		RunViewer: func(ctx context.Context, baseRef, repoDir string) error {
			svc, err := buildService(baseRef, repoDir, "You")
			if err != nil {
				return err
			}
			return tui.Run(ctx, svc, domain.DiffAgainstBase)
		},
		Version: version.Value(),
	})

	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, cli.ErrVersionRequested) {
			return nil
		}
		return err
	}
	return nil
}

func buildLogger(cfg config.LoggingConfig) review.Logger {
	if !cfg.Enabled {
		return nil
	}
	return observability.NewLogger(
		observability.ParseLevel(cfg.Level),
		observability.ParseFormat(cfg.Format),
		os.Stderr,
	)
}

func resolveRepoDir(flag, configured string) string {
	if flag != "" {
		return flag
	}
	if configured != "" {
		return configured
	}
	return "."
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func defaultConfigPaths() []string {
	paths := []string{"."}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "br"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "br"))
	}
	return paths
}
