package main

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/catalog-scraper/internal/config"
)

func loadWithFlags(t *testing.T, args ...string) *config.Config {
	t.Helper()

	cfg, err := config.Load()
	require.NoError(t, err)

	fs := newFlagSet("scraper", flag.ContinueOnError)
	require.NoError(t, fs.Parse(args))
	applyFlags(cfg, fs)
	return cfg
}

func TestApplyFlags_HeadlessOverridesEnv(t *testing.T) {
	t.Setenv("BROWSER_HEADLESS", "false")

	assert.True(t, loadWithFlags(t, "-headless=true").Browser.Headless)
	assert.False(t, loadWithFlags(t).Browser.Headless)

	t.Setenv("BROWSER_HEADLESS", "true")
	assert.False(t, loadWithFlags(t, "-headless=false").Browser.Headless)
	assert.True(t, loadWithFlags(t).Browser.Headless)
}

func TestApplyFlags_UnsetFlagsKeepEnv(t *testing.T) {
	t.Setenv("SCRAPER_MODE", "listing")
	t.Setenv("OUTPUT_DIR", "/data/out")
	t.Setenv("OUTPUT_DELIMITER", "tab")

	cfg := loadWithFlags(t, "-sections", "phones,touch", "-crlf")

	assert.Equal(t, []string{"phones", "touch"}, cfg.Scraper.Sections)
	assert.Equal(t, "listing", cfg.Scraper.Mode)
	assert.Equal(t, "/data/out", cfg.Output.Dir)
	assert.Equal(t, "tab", cfg.Output.Delimiter)
	assert.True(t, cfg.Output.CRLF)
}

func TestApplyFlags_Overrides(t *testing.T) {
	cfg := loadWithFlags(t, "-mode", "detail", "-engine", "static", "-out", "tmp", "-delimiter", ";")

	assert.Equal(t, "detail", cfg.Scraper.Mode)
	assert.Equal(t, config.EngineStatic, cfg.Scraper.Engine)
	assert.Equal(t, "tmp", cfg.Output.Dir)
	assert.Equal(t, ";", cfg.Output.Delimiter)
}
