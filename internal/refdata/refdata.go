// Package refdata caches the small, slowly-changing lookup lists that
// populate forms: destinations, routes, vehicles, sizes, payment methods.
// Sets are keyed by semantic type, not URL, and replaced wholesale on
// refresh; staleness is preferable to emptiness for these lists.
package refdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"parcelhub-sync-agent/internal/model"
	"parcelhub-sync-agent/internal/store"
)

// ErrUnknownType indicates a reference type outside the closed set.
var ErrUnknownType = errors.New("unknown reference data type")

// Manager serves and refreshes reference-data sets.
type Manager struct {
	store  store.Store
	client *http.Client
}

// New creates a reference-data manager.
func New(s store.Store, client *http.Client) *Manager {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Manager{store: s, client: client}
}

// Get returns the last-known full list for a semantic type, used as the
// initial render value before any network activity.
func (m *Manager) Get(ctx context.Context, typ model.ReferenceType) (*model.ReferenceDataSet, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
	return m.store.GetReferenceData(ctx, typ)
}

// Refresh fetches the live list and atomically replaces the stored set for
// that type. On fetch failure it falls back to the existing cached list
// rather than raising, so forms stay populated offline.
func (m *Manager) Refresh(ctx context.Context, typ model.ReferenceType, url string) (*model.ReferenceDataSet, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}

	items, err := m.fetch(ctx, url)
	if err != nil {
		log.Printf("[RefData] refresh failed for %s, serving cached: %v", typ, err)
		cached, cerr := m.store.GetReferenceData(ctx, typ)
		if cerr != nil {
			return nil, err
		}
		return cached, nil
	}

	set := model.ReferenceDataSet{
		Type:      typ,
		Items:     items,
		UpdatedAt: time.Now().UTC(),
	}
	if err := m.store.PutReferenceData(ctx, set); err != nil {
		// Non-fatal: the fresh list is still returned, only the mirror
		// missed this update.
		log.Printf("[RefData] store write failed for %s: %v", typ, err)
	}
	return &set, nil
}

// RefreshAll refreshes every known type against urlFor(type). Failures are
// per-type and do not abort the rest.
func (m *Manager) RefreshAll(ctx context.Context, urlFor func(model.ReferenceType) string) {
	for _, typ := range model.ReferenceTypes {
		if _, err := m.Refresh(ctx, typ, urlFor(typ)); err != nil {
			log.Printf("[RefData] refresh-all: %s failed: %v", typ, err)
		}
	}
}

func (m *Manager) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch reference data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetch reference data: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
