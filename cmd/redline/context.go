package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"redline/internal/catalog"
	"redline/internal/config"
	"redline/internal/jobs"
	"redline/internal/logging"
	"redline/internal/orchestrator"
	"redline/internal/raster"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withOrchestrator opens the stores for one command invocation, runs fn,
// and closes everything afterward.
func (c *commandContext) withOrchestrator(fn func(*config.Config, *orchestrator.Orchestrator) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return err
	}

	jobStore, err := jobs.Open(cfg)
	if err != nil {
		return err
	}
	defer jobStore.Close()

	catalogStore, err := catalog.Open(cfg)
	if err != nil {
		return err
	}
	defer catalogStore.Close()

	rasterizer := raster.NewFileRasterizer(catalogStore, cfg.Paths.RasterDir)
	orc := orchestrator.New(cfg, jobStore, catalogStore, rasterizer, nil, logger)
	return fn(cfg, orc)
}

// withCatalog opens only the entity catalog for import-style commands.
func (c *commandContext) withCatalog(fn func(*config.Config, *catalog.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := catalog.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
