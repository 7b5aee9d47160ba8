package lsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeConfigDefaults(t *testing.T) {
	cfg := decodeConfig(nil, "")
	assert.Equal(t, DiagnosticsBasicSemantic, cfg.DiagnosticsMode)
	assert.True(t, cfg.ComposerEnabled)
	assert.False(t, cfg.IndexVendor)
	assert.Equal(t, "8.3", cfg.PHPVersion)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestDecodeConfigFallbackStubsPath(t *testing.T) {
	cfg := decodeConfig(nil, "/opt/stubs")
	assert.Equal(t, "/opt/stubs", cfg.StubsPath)
}

func TestDecodeConfigOverridesDefaults(t *testing.T) {
	raw := map[string]any{
		"diagnosticsMode": "syntax-only",
		"composerEnabled": false,
		"indexVendor":     true,
		"stubExtensions":  []any{"core", "json"},
		"stubsPath":       "/custom/stubs",
		"phpVersion":      "8.1",
		"logLevel":        "debug",
	}
	cfg := decodeConfig(raw, "/opt/stubs")

	assert.Equal(t, DiagnosticsSyntaxOnly, cfg.DiagnosticsMode)
	assert.False(t, cfg.ComposerEnabled)
	assert.True(t, cfg.IndexVendor)
	assert.Equal(t, []string{"core", "json"}, cfg.StubExtensions)
	assert.Equal(t, "/custom/stubs", cfg.StubsPath)
	assert.Equal(t, "8.1", cfg.PHPVersion)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestDecodeConfigPartialOverrideKeepsOtherDefaults(t *testing.T) {
	raw := map[string]any{"indexVendor": true}
	cfg := decodeConfig(raw, "")
	assert.True(t, cfg.IndexVendor)
	assert.Equal(t, DiagnosticsBasicSemantic, cfg.DiagnosticsMode)
	assert.True(t, cfg.ComposerEnabled)
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]bool{
		"debug":   true,
		"INFO":    true,
		"warn":    true,
		"warning": true,
		"error":   true,
		"loud":    false,
		"":        false,
	}
	for input, ok := range cases {
		_, got := parseLogLevel(input)
		assert.Equal(t, ok, got, "input %q", input)
	}
}

func TestDecodeConfigIgnoresUnmarshalableRaw(t *testing.T) {
	cfg := decodeConfig(func() {}, "")
	require.Equal(t, defaultConfig().DiagnosticsMode, cfg.DiagnosticsMode)
}
