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
// Package refresh runs at most one background cache refresh at a time.
package refresh

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lucasduport/trial-relay/pkg/metrics"
	"github.com/lucasduport/trial-relay/pkg/utils"
)

// Outcome is the result of a Trigger call.
type Outcome int

const (
	// Fresh means the cache was already fresh and nothing was started.
	Fresh Outcome = iota
	// AlreadyRunning means another refresh is in progress.
	AlreadyRunning
	// Started means a new background refresh was launched.
	Started
)

func (o Outcome) String() string {
	switch o {
	case Fresh:
		return "fresh"
	case AlreadyRunning:
		return "running"
	case Started:
		return "started"
	default:
		return "unknown"
	}
}

// Cache is what the coordinator refreshes.
type Cache interface {
	IsFresh() bool
	EnsureFresh(ctx context.Context) error
}

// Status is a snapshot of the coordinator.
type Status struct {
	Running    bool
	RunID      string
	LastError  string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Coordinator guards the IDLE/REFRESHING state. The freshness check and the
// transition to REFRESHING happen under one lock.
type Coordinator struct {
	cache Cache

	mu         sync.Mutex
	running    bool
	runID      string
	lastErr    string
	startedAt  time.Time
	finishedAt time.Time
	done       chan struct{}
}

// NewCoordinator returns an idle coordinator for cache.
func NewCoordinator(cache Cache) *Coordinator {
	return &Coordinator{cache: cache}
}

// Trigger starts a background refresh unless one runs or the cache is fresh.
// It never blocks on network work.
func (c *Coordinator) Trigger() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return AlreadyRunning
	}
	if c.cache.IsFresh() {
		return Fresh
	}

	c.running = true
	c.lastErr = ""
	c.runID = uuid.New().String()
	c.startedAt = time.Now()
	c.done = make(chan struct{})
	metrics.SetRefreshing(true)

	go c.run(c.runID, c.done)
	return Started
}

func (c *Coordinator) run(runID string, done chan struct{}) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			utils.ErrorLog("Refresh %s panicked: %v\n%s", runID, r, debug.Stack())
			err = fmt.Errorf("refresh panicked: %v", r)
		}
		c.finish(err)
		close(done)
	}()

	utils.InfoLog("Refresh %s started", runID)
	err = c.cache.EnsureFresh(context.Background())
}

func (c *Coordinator) finish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.running = false
	c.finishedAt = time.Now()
	metrics.SetRefreshing(false)
	if err != nil {
		c.lastErr = err.Error()
		utils.ErrorLog("Refresh %s failed after %s: %v", c.runID, c.finishedAt.Sub(c.startedAt).Truncate(time.Millisecond), err)
		return
	}
	c.lastErr = ""
	utils.InfoLog("Refresh %s finished in %s", c.runID, c.finishedAt.Sub(c.startedAt).Truncate(time.Millisecond))
}

// Status returns a snapshot of the coordinator state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Running:    c.running,
		RunID:      c.runID,
		LastError:  c.lastErr,
		StartedAt:  c.startedAt,
		FinishedAt: c.finishedAt,
	}
}

// Wait blocks until no refresh is running or ctx is done.
func (c *Coordinator) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	running := c.running
	c.mu.Unlock()

	if !running || done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
