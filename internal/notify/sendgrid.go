package notify

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendGridHost     = "https://api.sendgrid.com"
	sendGridEndpoint = "/v3/mail/send"
)

var _ Sender = &SendGridSender{}

type SendGridSender struct {
	apiKey string
	host   string
}

// NewSendGridSender sends through the SendGrid v3 API. An empty host uses the public API.
func NewSendGridSender(apiKey, host string) *SendGridSender {
	if host == "" {
		host = sendGridHost
	}
	return &SendGridSender{apiKey: apiKey, host: host}
}

func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	req := sendgrid.GetRequest(s.apiKey, sendGridEndpoint, s.host)
	req.Method = rest.Post
	req.Body = mail.GetRequestBody(buildSendGridMail(msg))

	resp, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid rejected email to %s: status %d: %s", msg.To, resp.StatusCode, resp.Body)
	}
	return nil
}

func buildSendGridMail(msg Message) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(msg.FromName, msg.FromAddress))
	m.Subject = msg.Subject

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(msg.ToName, msg.To))
	m.AddPersonalizations(p)

	// text/plain must precede text/html
	if msg.TextBody != "" {
		m.AddContent(mail.NewContent("text/plain", msg.TextBody))
	}
	m.AddContent(mail.NewContent("text/html", msg.HTMLBody))

	for _, a := range msg.Inline {
		att := mail.NewAttachment()
		att.SetContent(base64.StdEncoding.EncodeToString(a.Data))
		att.SetType(a.ContentType)
		att.SetFilename(a.Filename)
		att.SetDisposition("inline")
		att.SetContentID(a.ContentID)
		m.AddAttachment(att)
	}
	return m
}
