// Package receipt renders printable shipment receipts entirely on-device,
// with no network or storage dependency. The output is an ordered list of
// styled text lines; visual rendering (print/PDF) is up to the consumer.
package receipt

import (
	"strconv"
	"strings"
	"time"

	"parcelhub-sync-agent/internal/model"
)

// Size is the text-size class of a receipt line.
type Size string

const (
	SizeSmall  Size = "small"
	SizeNormal Size = "normal"
	SizeBig    Size = "big"
)

// Line is one rendered receipt line with presentational metadata.
type Line struct {
	Text       string `json:"text"`
	Size       Size   `json:"size"`
	Bold       bool   `json:"bold"`
	Prefix     string `json:"prefix,omitempty"`
	Terminator string `json:"terminator,omitempty"`
}

// Context carries the non-payload inputs of a receipt. CreatedAt is passed
// in rather than read from the clock so that generation is deterministic:
// the same payload and context always produce byte-identical lines.
type Context struct {
	LocalID     string
	ServedBy    string
	CompanyName string
	OfficeName  string
	CreatedAt   time.Time
}

// dateLayout is the timestamp format printed on receipts.
const dateLayout = "02/01/2006 15:04"

// Generate renders a receipt for the given payload. When a merchant template
// is supplied its line descriptors drive the layout; otherwise the built-in
// default layout covers the same fields. Both paths share one variable
// dictionary, so adding a layout never touches the substitution logic.
func Generate(p model.ShipmentPayload, rc Context, tpl *Template) []Line {
	vars := buildVars(p, rc)

	var l layout = defaultLayout{}
	if tpl != nil && len(tpl.Lines) > 0 {
		l = templateLayout{tpl: tpl}
	}
	return l.render(vars)
}

// ReceiptNumber derives the locally generated receipt number from the local
// entity id: last 8 characters, uppercased. Local ids embed a timestamp and
// random suffix, so two offline creations in one session never collide.
func ReceiptNumber(localID string) string {
	return strings.ToUpper(tail(localID, 8))
}

// PackageToken derives the package token from the local entity id: last 6
// characters, uppercased.
func PackageToken(localID string) string {
	return strings.ToUpper(tail(localID, 6))
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// buildVars assembles the fixed variable dictionary available to templates.
func buildVars(p model.ShipmentPayload, rc Context) map[string]string {
	return map[string]string{
		"company":        rc.CompanyName,
		"office":         rc.OfficeName,
		"served_by":      rc.ServedBy,
		"date":           rc.CreatedAt.Format(dateLayout),
		"receipt_number": ReceiptNumber(rc.LocalID),
		"package_token":  PackageToken(rc.LocalID),
		"sender_name":    p.SenderName,
		"sender_phone":   p.SenderPhone,
		"receiver_name":  p.ReceiverName,
		"receiver_phone": p.ReceiverPhone,
		"destination":    p.Destination,
		"route":          p.Route,
		"vehicle":        p.Vehicle,
		"size":           p.Size,
		"payment_method": p.PaymentMethod,
		"amount":         strconv.FormatInt(p.Amount, 10),
		"notes":          p.Notes,
	}
}
