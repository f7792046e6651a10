package refdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"parcelhub-sync-agent/internal/model"
	"parcelhub-sync-agent/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "refdata.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetRejectsUnknownType(t *testing.T) {
	m := New(newTestStore(t), nil)

	if _, err := m.Get(context.Background(), "warehouses"); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestGetReturnsNotFoundBeforeFirstRefresh(t *testing.T) {
	m := New(newTestStore(t), nil)

	if _, err := m.Get(context.Background(), model.RefRoutes); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRefreshReplacesStoredSet(t *testing.T) {
	body := `[{"id":1,"name":"Dar es Salaam"}]`
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer backend.Close()

	s := newTestStore(t)
	m := New(s, nil)
	ctx := context.Background()

	set, err := m.Refresh(ctx, model.RefDestinations, backend.URL)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if string(set.Items) != body {
		t.Fatalf("returned items mismatch: %s", set.Items)
	}

	// Second refresh replaces the set wholesale.
	body = `[{"id":2,"name":"Dodoma"}]`
	set, err = m.Refresh(ctx, model.RefDestinations, backend.URL)
	if err != nil {
		t.Fatalf("second Refresh: %v", err)
	}

	stored, err := s.GetReferenceData(ctx, model.RefDestinations)
	if err != nil {
		t.Fatalf("GetReferenceData: %v", err)
	}
	if string(stored.Items) != `[{"id":2,"name":"Dodoma"}]` {
		t.Fatalf("stored items not replaced: %s", stored.Items)
	}
}

func TestRefreshFallsBackToCachedOffline(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":7}]`))
	}))

	s := newTestStore(t)
	m := New(s, nil)
	ctx := context.Background()

	if _, err := m.Refresh(ctx, model.RefVehicles, backend.URL); err != nil {
		t.Fatalf("warm-up Refresh: %v", err)
	}

	url := backend.URL
	backend.Close()

	set, err := m.Refresh(ctx, model.RefVehicles, url)
	if err != nil {
		t.Fatalf("expected cached fallback, got %v", err)
	}
	if string(set.Items) != `[{"id":7}]` {
		t.Fatalf("fallback items mismatch: %s", set.Items)
	}
}

func TestRefreshWithNothingCachedPropagatesError(t *testing.T) {
	m := New(newTestStore(t), nil)

	if _, err := m.Refresh(context.Background(), model.RefSizes, "http://127.0.0.1:1/sizes"); err == nil {
		t.Fatal("expected error with no network and no cached set")
	}
}

func TestRefreshAllCoversEveryType(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer backend.Close()

	s := newTestStore(t)
	m := New(s, nil)
	ctx := context.Background()

	m.RefreshAll(ctx, func(typ model.ReferenceType) string {
		return backend.URL + "/" + string(typ)
	})

	for _, typ := range model.ReferenceTypes {
		set, err := s.GetReferenceData(ctx, typ)
		if err != nil {
			t.Fatalf("type %s not refreshed: %v", typ, err)
		}
		if set.UpdatedAt.IsZero() || time.Since(set.UpdatedAt) > time.Minute {
			t.Fatalf("type %s has stale UpdatedAt %v", typ, set.UpdatedAt)
		}
	}
}
