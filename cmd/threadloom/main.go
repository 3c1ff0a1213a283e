// ABOUTME: Entry point for the threadloom database utility
// ABOUTME: Provides schema init, health check, and thread listing commands

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"

	"github.com/threadloom/threadloom/internal/config"
	"github.com/threadloom/threadloom/internal/db"
)

// Version is set by goreleaser at build time.
var version = "dev"

// getConfigPath returns the path to the threadloom config file.
// Priority: THREADLOOM_CONFIG env var > XDG_CONFIG_HOME/threadloom/config.yaml > ~/.config/threadloom/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("THREADLOOM_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "threadloom", "config.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: threadloom <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  init [--force]   Create the database schema (--force drops existing data)")
		fmt.Println("  check            Verify the database and schema are reachable")
		fmt.Println("  threads          List recent threads with message counts")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "init":
		err = runInit(ctx, os.Args[2:])
	case "check":
		err = runCheck(ctx)
	case "threads":
		err = runThreads(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads config, wires the logger, and returns an engine registry.
func setup() (*config.Config, *db.Registry, error) {
	configPath := getConfigPath()

	cfg := config.Default()
	if _, err := os.Stat(configPath); err == nil {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	slog.SetDefault(setupLogger(cfg.Logging))

	return cfg, db.InitDefault(cfg.Database.Path), nil
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "drop existing tables before creating")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, registry, err := setup()
	if err != nil {
		return err
	}
	defer registry.Close()

	engine, err := registry.Engine()
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}

	if *force {
		color.New(color.FgYellow).Printf("  ! dropping existing tables at %s\n", cfg.Database.Path)
	}

	if err := engine.CreateTables(ctx, *force); err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}

	color.New(color.FgGreen).Print("  ▶ ")
	fmt.Printf("schema ready: %s\n", cfg.Database.Path)
	return nil
}

func runCheck(ctx context.Context) error {
	cfg, registry, err := setup()
	if err != nil {
		return err
	}
	defer registry.Close()

	engine, err := registry.Engine()
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}

	ok, err := engine.HasTables(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no tables at %s (run: threadloom init)", cfg.Database.Path)
	}

	color.New(color.FgGreen).Print("  ▶ ")
	fmt.Printf("database ok: %s (version %s)\n", cfg.Database.Path, version)
	return nil
}

func runThreads(ctx context.Context) error {
	_, registry, err := setup()
	if err != nil {
		return err
	}
	defer registry.Close()

	engine, err := registry.Engine()
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}

	return engine.WithSession(ctx, func(s *db.Session) error {
		threads, err := db.ListRecentThreads(ctx, s, 50)
		if err != nil {
			return err
		}

		cyan := color.New(color.FgCyan)
		gray := color.New(color.FgHiBlack)

		for _, t := range threads {
			count, err := db.CountThreadMessages(ctx, s, t.ID)
			if err != nil {
				return err
			}

			cyan.Print(t.ID)
			if t.ParentThreadID != nil {
				gray.Printf("  parent=%s", *t.ParentThreadID)
			}
			fmt.Printf("  %d messages  %s\n", count, t.CreatedAt.Format("2006-01-02 15:04:05"))
		}

		if len(threads) == 0 {
			gray.Println("  no threads")
		}
		return nil
	})
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
