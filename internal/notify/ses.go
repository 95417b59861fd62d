package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESAPI is the subset of the SES v2 client the sender uses.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

var _ Sender = &SESSender{}

// SESSender sends raw MIME messages through Amazon SES so the QR image can travel inline.
type SESSender struct {
	client SESAPI
}

func NewSESSender(client SESAPI) *SESSender {
	return &SESSender{client: client}
}

func (s *SESSender) Send(ctx context.Context, msg Message) error {
	raw, err := buildMIME(msg)
	if err != nil {
		return fmt.Errorf("failed to build email to %s: %w", msg.To, err)
	}

	_, err = s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.FromAddress),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content:          &types.EmailContent{Raw: &types.RawMessage{Data: raw}},
	})
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}
	return nil
}

// buildMIME renders msg as multipart/related with a multipart/alternative body
// followed by the inline attachments.
func buildMIME(msg Message) ([]byte, error) {
	var body bytes.Buffer
	alt := multipart.NewWriter(&body)
	if msg.TextBody != "" {
		if err := writePart(alt, "text/plain; charset=UTF-8", "quoted-printable", nil, []byte(msg.TextBody)); err != nil {
			return nil, err
		}
	}
	if err := writePart(alt, "text/html; charset=UTF-8", "quoted-printable", nil, []byte(msg.HTMLBody)); err != nil {
		return nil, err
	}
	if err := alt.Close(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	related := multipart.NewWriter(&buf)

	from := mail.Address{Name: msg.FromName, Address: msg.FromAddress}
	to := mail.Address{Name: msg.ToName, Address: msg.To}
	fmt.Fprintf(&buf, "From: %s\r\n", from.String())
	fmt.Fprintf(&buf, "To: %s\r\n", to.String())
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/related; boundary=%q\r\n\r\n", related.Boundary())

	h := textproto.MIMEHeader{}
	h.Set("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", alt.Boundary()))
	part, err := related.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(body.Bytes()); err != nil {
		return nil, err
	}

	for _, a := range msg.Inline {
		extra := textproto.MIMEHeader{}
		extra.Set("Content-ID", "<"+a.ContentID+">")
		extra.Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", a.Filename))
		if err := writePart(related, a.ContentType, "base64", extra, a.Data); err != nil {
			return nil, err
		}
	}

	if err := related.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writePart(w *multipart.Writer, contentType, encoding string, extra textproto.MIMEHeader, data []byte) error {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType)
	h.Set("Content-Transfer-Encoding", encoding)
	for k, v := range extra {
		h[k] = v
	}

	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}

	switch encoding {
	case "base64":
		return writeBase64Lines(part, data)
	default:
		qp := quotedprintable.NewWriter(part)
		if _, err := qp.Write(data); err != nil {
			return err
		}
		return qp.Close()
	}
}

// writeBase64Lines wraps encoded output at 76 characters.
func writeBase64Lines(w io.Writer, data []byte) error {
	const lineLen = 76
	enc := base64.StdEncoding.EncodeToString(data)
	for len(enc) > 0 {
		n := min(lineLen, len(enc))
		if _, err := fmt.Fprintf(w, "%s\r\n", enc[:n]); err != nil {
			return err
		}
		enc = enc[n:]
	}
	return nil
}
