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
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/lucasduport/trial-relay/pkg/refresh"
	"github.com/lucasduport/trial-relay/pkg/utils"
)

type trigger interface {
	Trigger() refresh.Outcome
}

// scheduler fires refresh triggers on a cron spec. Trigger is non-blocking
// so overlapping ticks simply report a running refresh.
type scheduler struct {
	cron *cron.Cron
	spec string
}

func newScheduler(spec string, t trigger) (*scheduler, error) {
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	if _, err := c.AddFunc(spec, func() {
		utils.DebugLog("Scheduled refresh: %s", t.Trigger())
	}); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	utils.InfoLog("Scheduled refresh trigger: %s", spec)
	return &scheduler{cron: c, spec: spec}, nil
}

func (s *scheduler) Start() { s.cron.Start() }

// Stop halts the schedule and waits for a tick in progress.
func (s *scheduler) Stop() {
	<-s.cron.Stop().Done()
}
