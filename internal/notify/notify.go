// Package notify composes the entry pass email and hands it to a mail provider.
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"entrypass/internal/pass"
)

//go:embed templates
var templates embed.FS

// QRContentID is the Content-ID of the inline QR image referenced by the HTML body.
const QRContentID = "entry-pass"

// Attachment is a file carried with the message. Inline attachments are
// referenced from the HTML body as cid:<ContentID>.
type Attachment struct {
	Filename    string
	ContentType string
	ContentID   string
	Data        []byte
}

// Message is one outbound email.
type Message struct {
	FromAddress string
	FromName    string
	To          string
	ToName      string
	Subject     string
	HTMLBody    string
	TextBody    string
	Inline      []Attachment
}

// Sender delivers a message through a mail provider.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Event holds the details printed on every pass email.
type Event struct {
	Name         string
	Tagline      string
	Subject      string
	Date         string
	Time         string
	Venue        string
	ArrivalNote  string
	ContactEmail string
	ContactPhone string
	Footer       string
}

var DefaultEvent = Event{
	Name:         "TEDx Silver Oaks",
	Tagline:      "International School, Bachupally",
	Subject:      "Your TEDx Silver Oaks 2025 Entry Pass",
	Date:         "20th December 2025",
	Time:         "9:30 AM - 4:30 PM",
	Venue:        "Silver Oaks International School, Bachupally, Hyderabad",
	ArrivalNote:  "Please arrive by 9:00 AM. This QR code is non-transferable.",
	ContactEmail: "tedx@hyd.silveroaks.co.in",
	ContactPhone: "+91 73372 13122",
	Footer:       "© 2025 TEDxSilverOaksIntSchoolBachupally | This independent TEDx event is operated under license from TED",
}

// Dispatcher sends one pass email per call. It does not retry.
type Dispatcher struct {
	sender   Sender
	from     string
	fromName string
	event    Event
	html     *htmltemplate.Template
	text     *texttemplate.Template
}

func NewDispatcher(sender Sender, fromAddress, fromName string, event Event) (*Dispatcher, error) {
	html, err := htmltemplate.ParseFS(templates, "templates/entry-pass.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email template: %w", err)
	}
	text, err := texttemplate.ParseFS(templates, "templates/entry-pass-textonly.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email template: %w", err)
	}

	return &Dispatcher{
		sender:   sender,
		from:     fromAddress,
		fromName: fromName,
		event:    event,
		html:     html,
		text:     text,
	}, nil
}

// Dispatch emails the pass to the attendee.
func (d *Dispatcher) Dispatch(ctx context.Context, a pass.Attendee, issued pass.Issued) error {
	data := map[string]any{
		"Event":    d.event,
		"Attendee": a,
		"PassID":   issued.ID,
		"QRSrc":    htmltemplate.URL("cid:" + QRContentID),
	}

	var html bytes.Buffer
	if err := d.html.Execute(&html, data); err != nil {
		return fmt.Errorf("failed to execute email template: %w", err)
	}
	var text bytes.Buffer
	if err := d.text.Execute(&text, data); err != nil {
		return fmt.Errorf("failed to execute email template: %w", err)
	}

	return d.sender.Send(ctx, Message{
		FromAddress: d.from,
		FromName:    d.fromName,
		To:          a.Email,
		ToName:      a.Name,
		Subject:     d.event.Subject,
		HTMLBody:    html.String(),
		TextBody:    text.String(),
		Inline: []Attachment{{
			Filename:    "entry-pass.png",
			ContentType: "image/png",
			ContentID:   QRContentID,
			Data:        issued.PNG,
		}},
	})
}
