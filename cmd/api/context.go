package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"storyapi/internal/config"
	"storyapi/internal/database"
	"storyapi/internal/logging"
)

type commandContext struct {
	logLevelFlag *string

	once   sync.Once
	cfg    *config.AppConfig
	logger *slog.Logger
}

func newCommandContext(logLevelFlag *string) *commandContext {
	return &commandContext{logLevelFlag: logLevelFlag}
}

func (c *commandContext) init() {
	c.once.Do(func() {
		c.cfg = config.Load()
		if c.logLevelFlag != nil {
			if lvl := strings.TrimSpace(*c.logLevelFlag); lvl != "" {
				c.cfg.LogLevel = strings.ToLower(lvl)
			}
		}
		c.logger = logging.New(os.Stdout, c.cfg.LogLevel)
		slog.SetDefault(c.logger)
	})
}

func (c *commandContext) config() *config.AppConfig {
	c.init()
	return c.cfg
}

func (c *commandContext) log() *slog.Logger {
	c.init()
	return c.logger
}

// openDatabase connects to PostgreSQL and applies the schema if it is missing.
func (c *commandContext) openDatabase(ctx context.Context) (*sql.DB, error) {
	db, err := database.Open(ctx, c.config().Database, c.log())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}
