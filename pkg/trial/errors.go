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
package trial

import "fmt"

// Stage names one step of the trial acquisition conversation.
type Stage string

const (
	StageRegistration Stage = "registration"
	StageNonce        Stage = "nonce-extraction"
	StageTrial        Stage = "trial-activation"
	StageScrape       Stage = "credential-scrape"
)

// AcquisitionError reports which step of the acquisition failed.
type AcquisitionError struct {
	Stage Stage
	Err   error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("trial acquisition failed at %s: %v", e.Stage, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// TransportError is a timeout, connection failure or unexpected HTTP status
// on an outbound call.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError means the upstream answered but not in the expected shape.
type ParseError struct {
	What string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "parse " + e.What
	}
	return fmt.Sprintf("parse %s: %v", e.What, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// RejectedError means the upstream parsed fine but refused the step.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string { return "rejected: " + e.Reason }

func stageErr(stage Stage, err error) error {
	return &AcquisitionError{Stage: stage, Err: err}
}
