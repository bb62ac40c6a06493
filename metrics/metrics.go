// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics defines the prometheus collectors of a deployment. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "slots"

// Outcome labels
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics groups the collectors
type Metrics struct {
	traversals        *prometheus.CounterVec
	rejectedCallbacks prometheus.Counter
	vaultOps          *prometheus.CounterVec
	shareChanges      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg when it is not nil
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		traversals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "traversals_total",
			Help:      "Route traversals by mode and outcome",
		}, []string{"mode", "outcome"}),
		rejectedCallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "rejected_callbacks_total",
			Help:      "Pool callbacks rejected by address re-derivation",
		}),
		vaultOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vault",
			Name:      "operations_total",
			Help:      "Position vault operations by kind and outcome",
		}, []string{"op", "outcome"}),
		shareChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fee",
			Name:      "share_changes_total",
			Help:      "Protocol fee share change attempts by outcome",
		}, []string{"outcome"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.traversals, m.rejectedCallbacks, m.vaultOps, m.shareChanges} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return nil, err
		}
	}
	return m, nil
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}

// Traversal records a finished route traversal
func (m *Metrics) Traversal(mode string, err error) {
	if m == nil {
		return
	}
	m.traversals.WithLabelValues(mode, outcome(err)).Inc()
}

// RejectedCallback records a callback that failed authentication
func (m *Metrics) RejectedCallback() {
	if m == nil {
		return
	}
	m.rejectedCallbacks.Inc()
}

// VaultOp records a finished vault operation
func (m *Metrics) VaultOp(op string, err error) {
	if m == nil {
		return
	}
	m.vaultOps.WithLabelValues(op, outcome(err)).Inc()
}

// ShareChange records a fee share change attempt
func (m *Metrics) ShareChange(err error) {
	if m == nil {
		return
	}
	m.shareChanges.WithLabelValues(outcome(err)).Inc()
}
