package lsp

import (
	"encoding/json"
	"log/slog"
	"strings"

	"phpls/pkg/stubs"
)

// DiagnosticsMode controls how much of publishDiagnostics runs.
type DiagnosticsMode string

const (
	// DiagnosticsOff suppresses textDocument/publishDiagnostics entirely.
	DiagnosticsOff DiagnosticsMode = "off"
	// DiagnosticsSyntaxOnly publishes parse errors only.
	DiagnosticsSyntaxOnly DiagnosticsMode = "syntax-only"
	// DiagnosticsBasicSemantic adds semantic checks, but only on files with
	// no syntax error -- see publishDiagnostics.
	DiagnosticsBasicSemantic DiagnosticsMode = "basic-semantic"
)

// Config is the decoded shape of initializationOptions: client-set values
// override these defaults field by field, an unset key keeps its default.
type Config struct {
	DiagnosticsMode DiagnosticsMode
	ComposerEnabled bool
	IndexVendor     bool
	StubExtensions  []string
	StubsPath       string
	PHPVersion      string
	LogLevel        string
}

func defaultConfig() Config {
	return Config{
		DiagnosticsMode: DiagnosticsBasicSemantic,
		ComposerEnabled: true,
		IndexVendor:     false,
		StubExtensions:  stubs.DefaultExtensions,
		PHPVersion:      "8.3",
		LogLevel:        "info",
	}
}

// rawConfig mirrors the initializationOptions keys this server recognizes.
type rawConfig struct {
	DiagnosticsMode string   `json:"diagnosticsMode"`
	ComposerEnabled *bool    `json:"composerEnabled"`
	IndexVendor     *bool    `json:"indexVendor"`
	StubExtensions  []string `json:"stubExtensions"`
	StubsPath       string   `json:"stubsPath"`
	PHPVersion      string   `json:"phpVersion"`
	LogLevel        string   `json:"logLevel"`
}

// decodeConfig applies raw (params.InitializationOptions, typically a
// map[string]any after the JSON-RPC decode) on top of the defaults.
// fallbackStubsPath seeds StubsPath from the CLI flag when the client sends
// no initializationOptions at all.
func decodeConfig(raw any, fallbackStubsPath string) Config {
	cfg := defaultConfig()
	if fallbackStubsPath != "" {
		cfg.StubsPath = fallbackStubsPath
	}
	if raw == nil {
		return cfg
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return cfg
	}
	var rc rawConfig
	if err := json.Unmarshal(data, &rc); err != nil {
		return cfg
	}

	if rc.DiagnosticsMode != "" {
		cfg.DiagnosticsMode = DiagnosticsMode(rc.DiagnosticsMode)
	}
	if rc.ComposerEnabled != nil {
		cfg.ComposerEnabled = *rc.ComposerEnabled
	}
	if rc.IndexVendor != nil {
		cfg.IndexVendor = *rc.IndexVendor
	}
	if len(rc.StubExtensions) > 0 {
		cfg.StubExtensions = rc.StubExtensions
	}
	if rc.StubsPath != "" {
		cfg.StubsPath = rc.StubsPath
	}
	if rc.PHPVersion != "" {
		cfg.PHPVersion = rc.PHPVersion
	}
	if rc.LogLevel != "" {
		cfg.LogLevel = rc.LogLevel
	}
	return cfg
}

func parseLogLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return 0, false
	}
}
