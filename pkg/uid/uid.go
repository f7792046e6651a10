package uid

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OfflinePrefix marks locally generated entity ids, so they can never be
// confused with server-assigned identifiers.
const OfflinePrefix = "offline_"

// New generates a new unique identifier.
func New() string {
	return uuid.New().String()
}

// IsValid checks if a string is a valid UUID.
func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// NewOfflineID generates a local entity id of the form
// offline_<unix-millis>_<6 hex chars>. The timestamp keeps ids roughly
// sortable; the random suffix prevents collisions within one millisecond.
func NewOfflineID(now time.Time) string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("%s%d_%s", OfflinePrefix, now.UnixMilli(), raw[:6])
}

// IsOffline reports whether an id was generated locally.
func IsOffline(id string) bool {
	return strings.HasPrefix(id, OfflinePrefix)
}
