package uid

import (
	"strings"
	"testing"
	"time"
)

func TestNewGeneratesValidUUID(t *testing.T) {
	id := New()
	if !IsValid(id) {
		t.Fatalf("New returned invalid UUID: %s", id)
	}
}

func TestNewOfflineIDFormat(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	id := NewOfflineID(now)

	if !IsOffline(id) {
		t.Fatalf("offline id missing prefix: %s", id)
	}

	parts := strings.Split(strings.TrimPrefix(id, OfflinePrefix), "_")
	if len(parts) != 2 {
		t.Fatalf("unexpected offline id shape: %s", id)
	}
	if parts[0] != "1773480600000" {
		t.Fatalf("timestamp part = %s", parts[0])
	}
	if len(parts[1]) != 6 {
		t.Fatalf("random suffix length = %d", len(parts[1]))
	}
}

func TestNewOfflineIDsAreUniqueWithinOneInstant(t *testing.T) {
	now := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewOfflineID(now)
		if seen[id] {
			t.Fatalf("duplicate offline id: %s", id)
		}
		seen[id] = true
	}
}

func TestIsOffline(t *testing.T) {
	if IsOffline("srv-12345") {
		t.Fatal("server id reported as offline")
	}
	if !IsOffline("offline_1_abcdef") {
		t.Fatal("offline id not recognized")
	}
}
