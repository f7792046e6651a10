package model

import (
	"encoding/json"
	"time"
)

// ReferenceType is the closed set of semantic reference-data types. Reference
// data is looked up by type rather than URL so cache hits survive unrelated
// query-parameter variations.
type ReferenceType string

const (
	RefDestinations   ReferenceType = "destinations"
	RefRoutes         ReferenceType = "routes"
	RefVehicles       ReferenceType = "vehicles"
	RefSizes          ReferenceType = "sizes"
	RefPaymentMethods ReferenceType = "payment-methods"
)

// ReferenceTypes lists all known reference-data types.
var ReferenceTypes = []ReferenceType{
	RefDestinations,
	RefRoutes,
	RefVehicles,
	RefSizes,
	RefPaymentMethods,
}

// Valid reports whether t is one of the known reference-data types.
func (t ReferenceType) Valid() bool {
	for _, known := range ReferenceTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ReferenceDataSet holds the full current list for one semantic type.
// Sets are replaced wholesale on refresh; staleness is preferable to
// emptiness for these low-churn lookup lists, so there is no TTL.
type ReferenceDataSet struct {
	Type      ReferenceType   `json:"type"`
	Items     json.RawMessage `json:"items"`
	UpdatedAt time.Time       `json:"updated_at"`
}
