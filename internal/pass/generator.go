package pass

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/color"
	"time"

	"github.com/skip2/go-qrcode"
)

// Style holds the fixed visual parameters of a rendered pass.
type Style struct {
	Size   int
	Margin int
	Dark   color.Color
	Light  color.Color
	Level  qrcode.RecoveryLevel
}

// DefaultStyle renders a 400px code with a two module margin in the event colors.
var DefaultStyle = Style{
	Size:   400,
	Margin: 2,
	Dark:   color.RGBA{R: 0xE6, G: 0x2B, B: 0x1E, A: 0xFF},
	Light:  color.White,
	Level:  qrcode.Medium,
}

// Issued is a freshly generated pass.
type Issued struct {
	ID      string
	Payload Payload
	PNG     []byte
}

// DataURL returns the QR image as an inline data URL.
func (i Issued) DataURL() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(i.PNG)
}

// Generator produces pass ids and QR images.
type Generator struct {
	style Style
	now   func() time.Time
	newID func() (string, error)
}

// NewGenerator creates a generator that renders with the given style.
func NewGenerator(style Style) *Generator {
	return &Generator{
		style: style,
		now:   time.Now,
		newID: NewID,
	}
}

// Generate issues a new pass for the attendee. It has no side effects.
func (g *Generator) Generate(a Attendee) (Issued, error) {
	id, err := g.newID()
	if err != nil {
		return Issued{}, err
	}

	payload := Payload{
		ID:        id,
		Name:      a.Name,
		Email:     a.Email,
		Phone:     a.Phone,
		School:    a.School,
		Timestamp: g.now().UTC().Truncate(time.Millisecond),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Issued{}, fmt.Errorf("failed to serialize qr payload: %w", err)
	}

	png, err := render(string(data), g.style)
	if err != nil {
		return Issued{}, fmt.Errorf("failed to render qr code: %w", err)
	}

	return Issued{ID: id, Payload: payload, PNG: png}, nil
}
