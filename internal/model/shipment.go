package model

// ShipmentPayload is the shipment creation request as captured from the UI.
// The queue layer treats it as opaque JSON; this typed form belongs to the
// shipment feature only.
type ShipmentPayload struct {
	SenderName    string `json:"sender_name"`
	SenderPhone   string `json:"sender_phone"`
	ReceiverName  string `json:"receiver_name"`
	ReceiverPhone string `json:"receiver_phone"`
	Destination   string `json:"destination"`
	Route         string `json:"route,omitempty"`
	Vehicle       string `json:"vehicle,omitempty"`
	Size          string `json:"size,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
	Amount        int64  `json:"amount"`
	Notes         string `json:"notes,omitempty"`
}
