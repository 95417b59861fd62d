// Package pass issues entry passes: a random identifier plus a QR code that
// encodes the attendee payload scanned at the gate.
package pass

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// IDBytes is the number of random bytes behind a pass id.
const IDBytes = 16

// Attendee is one registrant as read from the registration sheet.
type Attendee struct {
	Name   string `json:"name"`
	School string `json:"school"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
}

// Missing returns the names of empty required fields.
func (a Attendee) Missing() []string {
	var missing []string
	if strings.TrimSpace(a.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(a.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(a.Phone) == "" {
		missing = append(missing, "phone")
	}
	if strings.TrimSpace(a.School) == "" {
		missing = append(missing, "school")
	}
	return missing
}

// Payload is the data serialized into the QR code.
type Payload struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	School    string    `json:"school"`
	Timestamp time.Time `json:"timestamp"`
}

// Record is an issued pass together with its check-in state.
// The only transition is CheckedIn false -> true.
type Record struct {
	Payload
	CheckedIn   bool       `json:"checkedIn"`
	CheckInTime *time.Time `json:"checkInTime"`
}

// NewRecord returns the not-yet-checked-in record for a payload.
func NewRecord(p Payload) Record {
	return Record{Payload: p}
}

// NewID returns 16 random bytes, hex encoded.
func NewID() (string, error) {
	b := make([]byte, IDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ParsePayload decodes the string scanned from a QR code.
func ParsePayload(qrData string) (Payload, error) {
	if strings.TrimSpace(qrData) == "" {
		return Payload{}, errors.New("empty qr data")
	}
	var p Payload
	if err := json.Unmarshal([]byte(qrData), &p); err != nil {
		return Payload{}, fmt.Errorf("failed to decode qr data: %w", err)
	}
	if p.ID == "" {
		return Payload{}, errors.New("qr data has no pass id")
	}
	return p, nil
}
