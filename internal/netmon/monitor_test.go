package netmon

import (
	"testing"
	"time"
)

func TestInitialStateIsOnline(t *testing.T) {
	m := New(Config{})
	if !m.IsOnline() {
		t.Fatal("monitor should assume online before the first probe")
	}
}

func TestSetOnlineTransitions(t *testing.T) {
	m := New(Config{})

	m.SetOnline(false)
	if m.IsOnline() {
		t.Fatal("expected offline after SetOnline(false)")
	}

	m.SetOnline(true)
	if !m.IsOnline() {
		t.Fatal("expected online after SetOnline(true)")
	}
	if !m.JustReconnected() {
		t.Fatal("expected JustReconnected right after the offline -> online edge")
	}
}

func TestReconnectedFiresOnlyOnEdge(t *testing.T) {
	m := New(Config{})

	// Online -> online is not an edge.
	m.SetOnline(true)
	select {
	case <-m.Reconnected():
		t.Fatal("no signal expected without an offline -> online edge")
	default:
	}

	m.SetOnline(false)
	m.SetOnline(true)

	select {
	case <-m.Reconnected():
	case <-time.After(time.Second):
		t.Fatal("expected a reconnect signal after the edge")
	}
}

func TestReconnectSignalsAreCoalesced(t *testing.T) {
	m := New(Config{})

	// Multiple rapid edges with no consumer must not block and must
	// collapse into a single pending signal.
	for i := 0; i < 5; i++ {
		m.SetOnline(false)
		m.SetOnline(true)
	}

	select {
	case <-m.Reconnected():
	case <-time.After(time.Second):
		t.Fatal("expected one pending signal")
	}
	select {
	case <-m.Reconnected():
		t.Fatal("signals were not coalesced")
	default:
	}
}

func TestOfflineToOfflineKeepsNoReconnectState(t *testing.T) {
	m := New(Config{})
	m.SetOnline(false)
	m.SetOnline(false)

	if m.IsOnline() {
		t.Fatal("expected offline")
	}
	if m.JustReconnected() {
		t.Fatal("no reconnect happened")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	m := New(Config{Interval: 10 * time.Millisecond})
	m.Start()
	m.Stop()
	m.Stop()
}
