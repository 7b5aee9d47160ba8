// Command phpls is a PHP language server: `phpls serve` speaks LSP over
// stdio, `phpls index` builds or refreshes a workspace's symbol snapshot
// without attaching a client.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"phpls/pkg/autoload"
	"phpls/pkg/ignore"
	"phpls/pkg/index"
	"phpls/pkg/lsp"
	"phpls/pkg/snapshot"
	"phpls/pkg/stubs"
)

var version = "0.1.0"

// errorHandled is set by commands that already printed a user-facing
// error so main() doesn't print it a second time.
var errorHandled bool

var (
	flagStubsPath string
	flagVerbose   bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "phpls: %v\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "phpls",
	Short:         "A PHP language server",
	Long:          "phpls parses PHP with tree-sitter and serves hover, definition, references, completion, rename, and diagnostics over the Language Server Protocol.",
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagStubsPath, "stubs", "", "path to a phpstorm-stubs checkout for builtin symbol support")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(indexCmd)
}

var logLevel slog.LevelVar

func newLogger() *slog.Logger {
	if flagVerbose {
		logLevel.Set(slog.LevelDebug)
	} else {
		logLevel.Set(slog.LevelInfo)
	}
	// stdout is the LSP wire; every log line goes to stderr instead.
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &logLevel}))
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the language server over stdio",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	lsp.StubsPath = flagStubsPath

	server := lsp.NewServer(logger)
	server.SetLevelVar(&logLevel)
	logger.Info("starting phpls", "version", version, "stubs", flagStubsPath)
	return server.RunStdio()
}

var (
	flagForce      bool
	flagComposer   string
	flagDBPath     string
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Build or refresh a workspace's symbol snapshot",
	Long:  "Scans a directory for PHP files, extracts symbols, and writes them to a SQLite snapshot database, without starting a language server.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "delete the existing snapshot and reindex from scratch")
	indexCmd.Flags().StringVar(&flagComposer, "composer", "composer.json", "path to composer.json, relative to the target directory")
	indexCmd.Flags().StringVar(&flagDBPath, "db", "", "snapshot database path (default: <target>/.phpls/index.db)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}

	dbPath := flagDBPath
	if dbPath == "" {
		dbPath = filepath.Join(targetDir, ".phpls", "index.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	if flagForce {
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing snapshot for --force: %w", err)
		}
	}

	snap, err := snapshot.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening snapshot database: %w", err)
	}
	defer snap.Close()
	if err := snap.Migrate(); err != nil {
		return fmt.Errorf("migrating snapshot database: %w", err)
	}

	idx := index.New()
	scanner := index.NewScanner()

	composerPath := flagComposer
	if !filepath.IsAbs(composerPath) {
		composerPath = filepath.Join(targetDir, composerPath)
	}
	if nm, err := autoload.Load(composerPath); err == nil {
		logger.Debug("loaded composer autoload map", "sourceDirs", nm.SourceDirectories())
	} else if !os.IsNotExist(err) {
		logger.Warn("failed to load composer.json", "error", err)
	}

	if m, err := ignore.Load(targetDir); err == nil {
		scanner.SetIgnore(m)
	} else {
		logger.Warn("failed to load .gitignore", "error", err)
	}

	if flagStubsPath != "" {
		n, err := stubs.Load(context.Background(), idx, flagStubsPath, nil, logger)
		if err != nil {
			logger.Warn("failed to load phpstorm stubs", "error", err)
		} else {
			logger.Info("loaded builtin stubs", "files", n)
		}
	}

	stats, hashes, err := scanner.ScanWorkspace(context.Background(), targetDir, idx)
	if err != nil {
		return fmt.Errorf("scanning workspace: %w", err)
	}

	for uri, hash := range hashes {
		fs := idx.FileSymbols(uri)
		if fs == nil {
			continue
		}
		if err := snap.SaveFile(uri, hash, fs); err != nil {
			logger.Warn("failed to persist snapshot entry", "uri", uri, "error", err)
		}
	}

	duration := time.Since(start)
	fmt.Fprintf(os.Stderr, "Indexed %s in %s (%d files, %d errors)\n",
		targetDir, duration.Round(time.Millisecond), stats.ParsedFiles, len(stats.Errors))
	fmt.Fprintf(os.Stderr, "Snapshot: %s\n", dbPath)
	for _, scanErr := range stats.Errors {
		fmt.Fprintf(os.Stderr, "  %s: %v\n", scanErr.Path, scanErr.Err)
	}

	return nil
}

func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}
