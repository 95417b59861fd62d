package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entrypass/internal/pass"
)

type mockSender struct {
	SendFunc func(ctx context.Context, msg Message) error
}

func (m *mockSender) Send(ctx context.Context, msg Message) error {
	return m.SendFunc(ctx, msg)
}

type mockSES struct {
	SendEmailFunc func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

func (m *mockSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, params, optFns...)
}

var asha = pass.Attendee{Name: "Asha", School: "XYZ School", Email: "a@x.com", Phone: "9999999999"}

func testMessage() Message {
	return Message{
		FromAddress: "tickets@example.com",
		FromName:    "TEDx Silver Oaks",
		To:          "a@x.com",
		ToName:      "Asha",
		Subject:     "Your TEDx Silver Oaks 2025 Entry Pass",
		HTMLBody:    `<p>Hello</p><img src="cid:entry-pass">`,
		TextBody:    "Hello",
		Inline: []Attachment{{
			Filename:    "entry-pass.png",
			ContentType: "image/png",
			ContentID:   QRContentID,
			Data:        []byte("\x89PNG fake image bytes"),
		}},
	}
}

func TestDispatch(t *testing.T) {
	var got Message
	sender := &mockSender{SendFunc: func(ctx context.Context, msg Message) error {
		got = msg
		return nil
	}}

	d, err := NewDispatcher(sender, "tickets@example.com", "TEDx Silver Oaks", DefaultEvent)
	require.NoError(t, err)

	issued := pass.Issued{ID: "abc123", PNG: []byte("png")}
	require.NoError(t, d.Dispatch(context.Background(), asha, issued))

	assert.Equal(t, "a@x.com", got.To)
	assert.Equal(t, "Asha", got.ToName)
	assert.Equal(t, "tickets@example.com", got.FromAddress)
	assert.Equal(t, "TEDx Silver Oaks", got.FromName)
	assert.Equal(t, "Your TEDx Silver Oaks 2025 Entry Pass", got.Subject)

	assert.Contains(t, got.HTMLBody, "Dear Asha,")
	assert.Contains(t, got.HTMLBody, "XYZ School")
	assert.Contains(t, got.HTMLBody, "9999999999")
	assert.Contains(t, got.TextBody, "Phone:  9999999999")
	assert.Contains(t, got.HTMLBody, `src="cid:entry-pass"`)
	assert.Contains(t, got.HTMLBody, "20th December 2025")
	assert.Contains(t, got.TextBody, "Pass:   abc123")

	require.Len(t, got.Inline, 1)
	assert.Equal(t, QRContentID, got.Inline[0].ContentID)
	assert.Equal(t, []byte("png"), got.Inline[0].Data)
}

func TestDispatchEscapesAttendeeFields(t *testing.T) {
	var got Message
	sender := &mockSender{SendFunc: func(ctx context.Context, msg Message) error {
		got = msg
		return nil
	}}
	d, err := NewDispatcher(sender, "tickets@example.com", "TEDx", DefaultEvent)
	require.NoError(t, err)

	a := asha
	a.Name = "<script>x</script>"
	require.NoError(t, d.Dispatch(context.Background(), a, pass.Issued{ID: "id"}))

	assert.NotContains(t, got.HTMLBody, "<script>")
	assert.Contains(t, got.HTMLBody, "&lt;script&gt;")
}

func TestDispatchPropagatesSenderError(t *testing.T) {
	sender := &mockSender{SendFunc: func(ctx context.Context, msg Message) error {
		return assert.AnError
	}}
	d, err := NewDispatcher(sender, "tickets@example.com", "TEDx", DefaultEvent)
	require.NoError(t, err)

	err = d.Dispatch(context.Background(), asha, pass.Issued{ID: "id"})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestSendGridSender(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotBody map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	err := NewSendGridSender("SG.key", srv.URL).Send(context.Background(), testMessage())
	require.NoError(t, err)

	assert.Equal(t, "/v3/mail/send", gotPath)
	assert.Equal(t, "Bearer SG.key", gotAuth)
	assert.Equal(t, "Your TEDx Silver Oaks 2025 Entry Pass", gotBody["subject"])

	content := gotBody["content"].([]any)
	require.Len(t, content, 2)
	assert.Equal(t, "text/plain", content[0].(map[string]any)["type"])
	assert.Equal(t, "text/html", content[1].(map[string]any)["type"])

	attachments := gotBody["attachments"].([]any)
	require.Len(t, attachments, 1)
	att := attachments[0].(map[string]any)
	assert.Equal(t, "inline", att["disposition"])
	assert.Equal(t, QRContentID, att["content_id"])
}

func TestSendGridSenderRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"message":"bad key"}]}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewSendGridSender("bad", srv.URL).Send(context.Background(), testMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestSESSender(t *testing.T) {
	var raw []byte
	client := &mockSES{SendEmailFunc: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
		assert.Equal(t, "tickets@example.com", *params.FromEmailAddress)
		assert.Equal(t, []string{"a@x.com"}, params.Destination.ToAddresses)
		raw = params.Content.Raw.Data
		return &sesv2.SendEmailOutput{}, nil
	}}

	require.NoError(t, NewSESSender(client).Send(context.Background(), testMessage()))

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)

	dec := new(mime.WordDecoder)
	subject, err := dec.DecodeHeader(msg.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "Your TEDx Silver Oaks 2025 Entry Pass", subject)

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/related", mediaType)

	mr := multipart.NewReader(msg.Body, params["boundary"])

	body, err := mr.NextPart()
	require.NoError(t, err)
	bodyType, _, err := mime.ParseMediaType(body.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", bodyType)

	img, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.Header.Get("Content-Type"))
	assert.Equal(t, "<entry-pass>", img.Header.Get("Content-Id"))
	data, err := io.ReadAll(img)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(string(data)), "iVBOR"))

	_, err = mr.NextPart()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSESSenderError(t *testing.T) {
	client := &mockSES{SendEmailFunc: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
		return nil, assert.AnError
	}}

	err := NewSESSender(client).Send(context.Background(), testMessage())
	assert.ErrorIs(t, err, assert.AnError)
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	require.NoError(t, NewLogSender(logger).Send(context.Background(), testMessage()))
	assert.Contains(t, buf.String(), `"to":"a@x.com"`)
	assert.Contains(t, buf.String(), "entry-pass.png")
}
