// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package provider

import (
	"sync"
	"time"

	delmerr "github.com/sigil-dev/delm/pkg/errors"
)

// HealthMetrics is a point-in-time snapshot of a provider's health.
type HealthMetrics struct {
	FailureCount        int64      `json:"failure_count"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
	CooldownUntil       *time.Time `json:"cooldown_until,omitempty"`
	Available           bool       `json:"available"`
}

// DefaultHealthCooldown is the cooldown after a single failure.
const DefaultHealthCooldown = 30 * time.Second

// maxCooldownDoublings caps the backoff at 16x the base cooldown.
const maxCooldownDoublings = 4

// HealthTracker keeps a provider out of routing after a failed call. The
// cooldown doubles with each consecutive failure up to 16x the base and
// resets on the next success. Once a cooldown elapses the provider is tried
// again.
type HealthTracker struct {
	mu           sync.RWMutex
	base         time.Duration
	failedAt     time.Time
	consecutive  int
	failureCount int64
	nowFunc      func() time.Time
}

// NewHealthTracker creates a healthy tracker with the given base cooldown.
func NewHealthTracker(cooldown time.Duration) (*HealthTracker, error) {
	if cooldown <= 0 {
		return nil, delmerr.Errorf(delmerr.CodeConfigValidateInvalidValue,
			"health tracker cooldown must be positive, got %s", cooldown)
	}
	return &HealthTracker{base: cooldown, nowFunc: time.Now}, nil
}

// NewDefaultHealthTracker returns a healthy tracker using DefaultHealthCooldown.
func NewDefaultHealthTracker() *HealthTracker {
	return &HealthTracker{base: DefaultHealthCooldown, nowFunc: time.Now}
}

// cooldownLocked is the current backoff. Caller holds h.mu.
func (h *HealthTracker) cooldownLocked() time.Duration {
	if h.consecutive == 0 {
		return 0
	}
	return h.base << min(h.consecutive-1, maxCooldownDoublings)
}

func (h *HealthTracker) isHealthyLocked() bool {
	if h.consecutive == 0 {
		return true
	}
	return h.nowFunc().Sub(h.failedAt) >= h.cooldownLocked()
}

// IsHealthy reports whether the provider may be routed to.
func (h *HealthTracker) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.isHealthyLocked()
}

func (h *HealthTracker) RecordSuccess() {
	h.mu.Lock()
	h.consecutive = 0
	h.mu.Unlock()
}

func (h *HealthTracker) RecordFailure() {
	h.mu.Lock()
	h.failedAt = h.nowFunc()
	h.consecutive++
	h.failureCount++
	h.mu.Unlock()
}

// SetNowFunc overrides the time source.
func (h *HealthTracker) SetNowFunc(fn func() time.Time) {
	h.mu.Lock()
	h.nowFunc = fn
	h.mu.Unlock()
}

func (h *HealthTracker) HealthMetrics() HealthMetrics {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m := HealthMetrics{
		FailureCount:        h.failureCount,
		ConsecutiveFailures: h.consecutive,
		Available:           h.isHealthyLocked(),
	}
	if h.failureCount > 0 {
		t := h.failedAt
		m.LastFailureAt = &t
	}
	if h.consecutive > 0 {
		end := h.failedAt.Add(h.cooldownLocked())
		m.CooldownUntil = &end
	}
	return m
}

// Status renders the tracker as the named provider's status.
func (h *HealthTracker) Status(name string) ProviderStatus {
	m := h.HealthMetrics()
	st := ProviderStatus{Available: m.Available, Provider: name, Message: "ok", Health: &m}
	if !m.Available {
		st.Message = "cooling down until " + m.CooldownUntil.UTC().Format(time.RFC3339)
	}
	return st
}
