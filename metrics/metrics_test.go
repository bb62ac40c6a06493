// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.Traversal("exact_in", nil)
	m.Traversal("exact_in", errors.New("slippage"))
	m.RejectedCallback()
	m.VaultOp("open", nil)
	m.ShareChange(nil)

	require.Equal(t, 1.0, testutil.ToFloat64(m.traversals.WithLabelValues("exact_in", OutcomeOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.traversals.WithLabelValues("exact_in", OutcomeError)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.rejectedCallbacks))
	require.Equal(t, 1.0, testutil.ToFloat64(m.vaultOps.WithLabelValues("open", OutcomeOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.shareChanges.WithLabelValues(OutcomeOK)))

	// registering twice on the same registry is tolerated
	_, err = New(reg)
	require.NoError(t, err)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.Traversal("exact_out", nil)
	m.RejectedCallback()
	m.VaultOp("close", nil)
	m.ShareChange(nil)
}
