/*
 * trial-relay republishes a LIVE-only IPTV playlist from an automated trial account.
 * Copyright (C) 2025  Lucas Duport
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */
package server

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/lucasduport/trial-relay/pkg/cache"
	"github.com/lucasduport/trial-relay/pkg/config"
	"github.com/lucasduport/trial-relay/pkg/metrics"
	"github.com/lucasduport/trial-relay/pkg/refresh"
	"github.com/lucasduport/trial-relay/pkg/store"
	"github.com/lucasduport/trial-relay/pkg/trial"
	"github.com/lucasduport/trial-relay/pkg/utils"
)

// Config represent the server configuration
type Config struct {
	*config.RelayConfig

	cache       *cache.Manager
	coordinator *refresh.Coordinator
	ledger      store.CredentialStore
	scheduler   *scheduler
}

// NewServer wires the ledger, trial client, cache and refresh coordinator.
func NewServer(cfg *config.RelayConfig) (*Config, error) {
	if err := cfg.Validate(); err != nil {
		return nil, utils.PrintErrorAndReturn(err)
	}
	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, utils.PrintErrorAndReturn(fmt.Errorf("create data directory: %w", err))
		}
	}

	ledger := store.NewLedger(cfg.CredentialPath(), cfg.MediaServerURL)
	manager := cache.NewManager(cfg, ledger, trial.NewClient(cfg))
	utils.InfoLog("Ledger: %s, playlist: %s, validity: %s", cfg.CredentialPath(), cfg.PlaylistPath(), cfg.Validity)
	if cfg.VerifyCredentials {
		utils.InfoLog("Stored credentials are verified against %s before reuse", cfg.MediaServerURL)
	}

	return newServer(cfg, manager, refresh.NewCoordinator(manager), ledger), nil
}

func newServer(cfg *config.RelayConfig, manager *cache.Manager, coordinator *refresh.Coordinator, ledger store.CredentialStore) *Config {
	return &Config{
		RelayConfig: cfg,
		cache:       manager,
		coordinator: coordinator,
		ledger:      ledger,
	}
}

// Router builds the gin engine serving the relay endpoints.
func (c *Config) Router() *gin.Engine {
	router := gin.Default()
	router.Use(cors.Default())
	c.routes(router)
	return router
}

func (c *Config) routes(r *gin.Engine) {
	r.GET("/init", c.initRefresh)
	r.GET("/live.m3u", c.authenticate, c.getLiveM3U)
	r.HEAD("/live.m3u", c.authenticate, c.getLiveM3U)
	r.GET("/get-m3u", c.authenticate, c.getFullM3U)
	r.GET("/health", c.health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
}

// Serve the trial-relay api
func (c *Config) Serve() error {
	utils.InfoLog("[trial-relay] Server is starting...")

	if c.RefreshSchedule != "" {
		s, err := newScheduler(c.RefreshSchedule, c.coordinator)
		if err != nil {
			return utils.PrintErrorAndReturn(err)
		}
		c.scheduler = s
		s.Start()
		defer s.Stop()
	}

	if c.RefreshOnStart {
		utils.InfoLog("Startup refresh: %s", c.coordinator.Trigger())
	}

	router := c.Router()
	utils.InfoLog("[trial-relay] Server is ready and listening on %s:%d", c.HostConfig.Hostname, c.HostConfig.Port)
	return router.Run(fmt.Sprintf(":%d", c.HostConfig.Port))
}

// Shutdown waits for a running refresh to finish.
func (c *Config) Shutdown(timeout time.Duration) error {
	if c.scheduler != nil {
		c.scheduler.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.coordinator.Wait(ctx)
}
