package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapScope/internal/zapper"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), cfg.ChainID)
	assert.Equal(t, "0xd9e1cE17f2641f24aE83637ab66a2cca9C378B9F", cfg.Router)
	assert.Equal(t, "0xC0AEe478e3658e2610c5F7A4A2E1777cE9e4f2Ac", cfg.Factory)
	assert.Equal(t, "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", cfg.WrappedNative)
	assert.Equal(t, "ETH", cfg.NativeSymbol)
	assert.Len(t, cfg.BaseTokens, 4)
	assert.Empty(t, cfg.Zapper, "zapper has no built-in default")
	assert.Equal(t, zapper.DefaultSeverityPolicy(), cfg.Severity)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFlagsOverrideDefaults(t *testing.T) {
	chdirTemp(t)
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Uint64("chain-id", 1, "")
	flags.String("router", "", "")
	flags.StringSlice("base-tokens", nil, "")
	require.NoError(t, flags.Parse([]string{
		"--chain-id=56",
		"--router=0x0000000000000000000000000000000000000001",
		"--base-tokens=0x02, 0x03",
	}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, uint64(56), cfg.ChainID)
	assert.Equal(t, "0x0000000000000000000000000000000000000001", cfg.Router)
	assert.Equal(t, "0xc35DADB65012eC5796536bD9864eD8773aBc74C4", cfg.Factory)
	assert.Equal(t, []string{"0x02", "0x03"}, cfg.BaseTokens)
	assert.Equal(t, "BNB", cfg.NativeSymbol)
}

func TestLoadConfigFile(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "zapper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
zapper: "0x2222222222222222222222222222222222222222"
severity:
  low_bps: 50
  medium_bps: 200
  blocked_bps: 1000
`), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "0x2222222222222222222222222222222222222222", cfg.Zapper)
	assert.Equal(t, zapper.SeverityPolicy{LowBps: 50, MediumBps: 200, BlockedBps: 1000}, cfg.Severity)
}

func TestLoadRejectsUnorderedSeverity(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "zapper.yaml")
	require.NoError(t, os.WriteFile(path, []byte("severity:\n  low_bps: 400\n  medium_bps: 300\n"), 0o644))
	_, err := Load(path, nil)
	assert.Error(t, err)
}

func TestEnvOverride(t *testing.T) {
	chdirTemp(t)
	t.Setenv("ZAPPER_ZAPPER", "0x3333333333333333333333333333333333333333")
	t.Setenv("ZAPPER_SEVERITY_BLOCKED_BPS", "800")
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "0x3333333333333333333333333333333333333333", cfg.Zapper)
	assert.Equal(t, uint64(800), cfg.Severity.BlockedBps)
}

func TestUnknownChainKeepsExplicitValues(t *testing.T) {
	_, ok := DefaultsFor(31337)
	assert.False(t, ok)

	cfg := Config{ChainID: 31337, Router: "0x01"}
	applyChainDefaults(&cfg)
	assert.Equal(t, "0x01", cfg.Router)
	assert.Empty(t, cfg.Factory)

	d, ok := DefaultsFor(1)
	require.True(t, ok)
	d.BaseTokens[0] = "mutated"
	again, _ := DefaultsFor(1)
	assert.NotEqual(t, "mutated", again.BaseTokens[0])
}
