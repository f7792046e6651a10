package syncqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"parcelhub-sync-agent/internal/model"
	"parcelhub-sync-agent/internal/store"
)

type fakeConn struct {
	mu     sync.Mutex
	online bool
}

func (c *fakeConn) IsOnline() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

func (c *fakeConn) set(online bool) {
	c.mu.Lock()
	c.online = online
	c.mu.Unlock()
}

type fakeTokens struct {
	token string
	err   error
}

func (f *fakeTokens) AccessToken(ctx context.Context) (string, error) {
	return f.token, f.err
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func enqueueDirect(t *testing.T, s store.Store, endpoint string, maxAttempts int, at time.Time) int64 {
	t.Helper()
	id, err := s.AppendQueueItem(context.Background(), model.SyncQueueItem{
		Kind:        model.OpCreate,
		Endpoint:    endpoint,
		Method:      http.MethodPost,
		Payload:     json.RawMessage(`{}`),
		EnqueuedAt:  at,
		MaxAttempts: maxAttempts,
	})
	if err != nil {
		t.Fatalf("AppendQueueItem: %v", err)
	}
	return id
}

func TestDrainDeliversInEnqueueOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		order = append(order, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer backend.Close()

	s := newTestStore(t)
	base := time.Now().UTC()
	for i, path := range []string{"/first", "/second", "/third"} {
		enqueueDirect(t, s, path, 5, base.Add(time.Duration(i)*time.Second))
	}

	m := New(Config{
		Store:        s,
		Connectivity: &fakeConn{online: true},
		Tokens:       &fakeTokens{token: "tok"},
		BaseURL:      backend.URL,
	})

	if !m.Drain(context.Background()) {
		t.Fatal("Drain reported already in flight")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"/first", "/second", "/third"}
	if len(order) != len(want) {
		t.Fatalf("expected %d deliveries, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("delivery %d: got %s, want %s", i, order[i], want[i])
		}
	}

	count, err := s.CountQueueItems(context.Background())
	if err != nil {
		t.Fatalf("CountQueueItems: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty queue after drain, got %d", count)
	}
}

func TestDrainDropsItemAtAttemptCeiling(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer backend.Close()

	s := newTestStore(t)
	enqueueDirect(t, s, "/doomed", 3, time.Now().UTC())

	m := New(Config{
		Store:        s,
		Connectivity: &fakeConn{online: true},
		Tokens:       &fakeTokens{token: "tok"},
		BaseURL:      backend.URL,
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		m.Drain(ctx)
	}

	count, err := s.CountQueueItems(ctx)
	if err != nil {
		t.Fatalf("CountQueueItems: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected item dropped after 3 attempts, %d still queued", count)
	}

	failures := m.PermanentFailures()
	if len(failures) != 1 {
		t.Fatalf("expected 1 permanent failure, got %d", len(failures))
	}
	if failures[0].Attempts != 3 {
		t.Fatalf("expected 3 attempts recorded, got %d", failures[0].Attempts)
	}
	if failures[0].Endpoint != "/doomed" {
		t.Fatalf("unexpected failure endpoint %s", failures[0].Endpoint)
	}
}

func TestPermanentFailureListIsCapped(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer backend.Close()

	s := newTestStore(t)
	base := time.Now().UTC()
	for i := 0; i < maxRecordedFailures+2; i++ {
		enqueueDirect(t, s, fmt.Sprintf("/f%02d", i), 1, base.Add(time.Duration(i)*time.Millisecond))
	}

	m := New(Config{
		Store:        s,
		Connectivity: &fakeConn{online: true},
		Tokens:       &fakeTokens{token: "tok"},
		BaseURL:      backend.URL,
	})
	m.Drain(context.Background())

	failures := m.PermanentFailures()
	if len(failures) != maxRecordedFailures {
		t.Fatalf("expected %d recorded failures, got %d", maxRecordedFailures, len(failures))
	}
	// Oldest entries are evicted first.
	if failures[0].Endpoint != "/f02" {
		t.Fatalf("expected oldest surviving failure /f02, got %s", failures[0].Endpoint)
	}
}

func TestDrainSingleFlight(t *testing.T) {
	release := make(chan struct{})
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	s := newTestStore(t)
	enqueueDirect(t, s, "/slow", 5, time.Now().UTC())

	m := New(Config{
		Store:        s,
		Connectivity: &fakeConn{online: true},
		Tokens:       &fakeTokens{token: "tok"},
		BaseURL:      backend.URL,
	})

	done := make(chan struct{})
	go func() {
		m.Drain(context.Background())
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !m.IsSyncing() {
		if time.Now().After(deadline) {
			t.Fatal("drain never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if m.Drain(context.Background()) {
		t.Fatal("second concurrent drain should be a no-op")
	}

	close(release)
	<-done

	if m.IsSyncing() {
		t.Fatal("drain flag still set after completion")
	}
}

func TestDrainSkipsWhileOffline(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should reach the backend while offline")
	}))
	defer backend.Close()

	s := newTestStore(t)
	enqueueDirect(t, s, "/waiting", 5, time.Now().UTC())

	m := New(Config{
		Store:        s,
		Connectivity: &fakeConn{online: false},
		Tokens:       &fakeTokens{token: "tok"},
		BaseURL:      backend.URL,
	})
	m.Drain(context.Background())

	count, err := s.CountQueueItems(context.Background())
	if err != nil {
		t.Fatalf("CountQueueItems: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected item left queued while offline, got %d", count)
	}
}

func TestMissingTokenCountsAsAttempt(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be sent without a token")
	}))
	defer backend.Close()

	s := newTestStore(t)
	enqueueDirect(t, s, "/needs-auth", 5, time.Now().UTC())

	m := New(Config{
		Store:        s,
		Connectivity: &fakeConn{online: true},
		Tokens:       &fakeTokens{err: errors.New("device not enrolled")},
		BaseURL:      backend.URL,
	})
	m.Drain(context.Background())

	items, err := s.ListQueueItems(context.Background())
	if err != nil {
		t.Fatalf("ListQueueItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected item still queued, got %d", len(items))
	}
	if items[0].Attempts != 1 {
		t.Fatalf("expected 1 attempt recorded, got %d", items[0].Attempts)
	}
}

func TestRunDrainsOnReconnectSignal(t *testing.T) {
	delivered := make(chan struct{}, 1)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		select {
		case delivered <- struct{}{}:
		default:
		}
	}))
	defer backend.Close()

	s := newTestStore(t)
	enqueueDirect(t, s, "/queued-offline", 5, time.Now().UTC())

	conn := &fakeConn{online: false}
	m := New(Config{
		Store:        s,
		Connectivity: conn,
		Tokens:       &fakeTokens{token: "tok"},
		BaseURL:      backend.URL,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reconnected := make(chan struct{}, 1)
	go m.Run(ctx, reconnected)

	conn.set(true)
	reconnected <- struct{}{}

	select {
	case <-delivered:
	case <-time.After(3 * time.Second):
		t.Fatal("item was not delivered after reconnect signal")
	}
}

func TestDeliverSendsBearerToken(t *testing.T) {
	var gotAuth string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	s := newTestStore(t)
	enqueueDirect(t, s, "/authed", 5, time.Now().UTC())

	m := New(Config{
		Store:        s,
		Connectivity: &fakeConn{online: true},
		Tokens:       &fakeTokens{token: "secret-token"},
		BaseURL:      backend.URL,
	})
	m.Drain(context.Background())

	if gotAuth != "Bearer secret-token" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
}

func TestOnItemSyncedHookFires(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	s := newTestStore(t)
	id, err := s.AppendQueueItem(context.Background(), model.SyncQueueItem{
		Kind:        model.OpCreate,
		Endpoint:    "/hooked",
		Method:      http.MethodPost,
		Payload:     json.RawMessage(`{}`),
		EntityID:    "offline_1700000000000_ab12cd",
		EnqueuedAt:  time.Now().UTC(),
		MaxAttempts: 5,
	})
	if err != nil {
		t.Fatalf("AppendQueueItem: %v", err)
	}

	var mu sync.Mutex
	var synced []model.SyncQueueItem
	m := New(Config{
		Store:        s,
		Connectivity: &fakeConn{online: true},
		Tokens:       &fakeTokens{token: "tok"},
		BaseURL:      backend.URL,
		OnItemSynced: func(item model.SyncQueueItem) {
			mu.Lock()
			synced = append(synced, item)
			mu.Unlock()
		},
	})
	m.Drain(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(synced) != 1 {
		t.Fatalf("expected hook to fire once, got %d", len(synced))
	}
	if synced[0].ID != id || synced[0].EntityID != "offline_1700000000000_ab12cd" {
		t.Fatalf("hook received wrong item: %+v", synced[0])
	}
}
