// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveConnectionTracksActiveCountAndDuration(t *testing.T) {
	m := New("test", prometheus.NewRegistry())

	done := make(chan struct{})
	go func() {
		m.ObserveConnection(func() {
			if got := testutil.ToFloat64(m.ActiveConnections); got != 1 {
				t.Errorf("ActiveConnections during call = %v, want 1", got)
			}
		})
		close(done)
	}()
	<-done

	if got := testutil.ToFloat64(m.ActiveConnections); got != 0 {
		t.Errorf("ActiveConnections after call = %v, want 0", got)
	}
}

func TestObserveRequestRecordsStatusLabel(t *testing.T) {
	m := New("test", prometheus.NewRegistry())

	m.ObserveRequest("GET", func() string { return "200" })

	got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "200"))
	if got != 1 {
		t.Fatalf("RequestsTotal{GET,200} = %v, want 1", got)
	}
}

func TestNewDefaultsNamespace(t *testing.T) {
	m := New("", prometheus.NewRegistry())
	if m.ActiveConnections == nil {
		t.Fatal("expected collectors to be constructed with a default namespace")
	}
}
