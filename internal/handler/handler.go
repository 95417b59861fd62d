// Package handler exposes the staff and registration API over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"entrypass/internal/httpmiddleware"
	"entrypass/internal/ledger"
	"entrypass/internal/pass"
	"entrypass/internal/registration"
	"entrypass/internal/sheets"
)

const notAvailable = "N/A"

// Registrar issues passes, either for the whole sheet or for one attendee.
type Registrar interface {
	SyncOnce(ctx context.Context) (registration.Result, error)
	IssueSingle(ctx context.Context, a pass.Attendee) (pass.Issued, error)
}

type Handler struct {
	ledger    *ledger.Service
	registrar Registrar
	source    sheets.Source
	logger    *slog.Logger
}

func New(svc *ledger.Service, registrar Registrar, source sheets.Source, logger *slog.Logger) *Handler {
	return &Handler{ledger: svc, registrar: registrar, source: source, logger: logger}
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	if err := h.ledger.Store().Ping(c.Request.Context()); err != nil {
		h.logError(c, "Ledger unreachable", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "ledger": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "ledger": true})
}

// ---------- Issue passes ----------

// SendQRCodes runs one registration sync cycle. The cycle outlives the
// caller: a client that hangs up does not stop dispatch halfway.
func (h *Handler) SendQRCodes(c *gin.Context) {
	if err := httpmiddleware.ClearWriteDeadline(c); err != nil {
		h.logger.WarnContext(c.Request.Context(), "Write deadline kept for sync request",
			slog.String("error", err.Error()),
			slog.String("request-id", httpmiddleware.GetRequestID(c)),
		)
	}

	ctx := context.WithoutCancel(c.Request.Context())
	if _, err := h.registrar.SyncOnce(ctx); err != nil {
		h.logError(c, "Sync failed", err)
		msg := "Failed to send QR codes"
		if registration.IsReason(err, registration.REASON_FAILED_TO_FETCH_ROWS) {
			msg = "Failed to fetch registrations"
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
		return
	}

	total, err := h.ledger.Count(ctx)
	if err != nil {
		h.internalError(c, err)
		return
	}
	sent, err := h.ledger.Store().ProcessedCount(ctx)
	if err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "QR codes sent to all new registrations",
		"total":   total,
		"sent":    sent,
	})
}

// singleRequest keeps the raw fields so spreadsheet-style numbers such as
// a phone sent as 9999999999 are accepted.
type singleRequest struct {
	Name   json.RawMessage `json:"name"`
	Email  json.RawMessage `json:"email"`
	Phone  json.RawMessage `json:"phone"`
	School json.RawMessage `json:"school"`
}

// SendSingleQR issues and emails a pass for the attendee in the body.
func (h *Handler) SendSingleQR(c *gin.Context) {
	var req singleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	a := pass.Attendee{
		Name:   fieldText(req.Name),
		Email:  fieldText(req.Email),
		Phone:  fieldText(req.Phone),
		School: fieldText(req.School),
	}
	if missing := a.Missing(); len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields", "missing": missing})
		return
	}

	issued, err := h.registrar.IssueSingle(c.Request.Context(), a)
	if err != nil {
		h.logError(c, "Failed to issue pass", err, slog.String("email", a.Email))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send QR code"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "QR code sent successfully",
		"uniqueId": issued.ID,
	})
}

// ---------- Scan ----------

type scanRequest struct {
	QRData string `json:"qrData"`
}

// VerifyQR reports whether scanned QR data belongs to an issued pass.
func (h *Handler) VerifyQR(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": "Invalid QR code format"})
		return
	}

	rec, err := h.ledger.Verify(c.Request.Context(), req.QRData)
	if err != nil {
		status, msg := h.scanError(c, err)
		c.JSON(status, gin.H{"valid": false, "error": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":            true,
		"attendee":         rec,
		"alreadyCheckedIn": rec.CheckedIn,
	})
}

// CheckIn admits the pass holder once.
func (h *Handler) CheckIn(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid QR code format"})
		return
	}

	rec, err := h.ledger.CheckIn(c.Request.Context(), req.QRData)
	if err != nil {
		if ledger.IsReason(err, ledger.REASON_ALREADY_CHECKED_IN) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success":     false,
				"error":       "Already checked in",
				"checkInTime": rec.CheckInTime,
			})
			return
		}
		status, msg := h.scanError(c, err)
		c.JSON(status, gin.H{"success": false, "error": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "Check-in successful",
		"attendee": rec,
	})
}

func (h *Handler) scanError(c *gin.Context, err error) (int, string) {
	var ledgerErr *ledger.Error
	if errors.As(err, &ledgerErr) {
		switch ledgerErr.Reason {
		case ledger.REASON_INVALID_PAYLOAD:
			return http.StatusBadRequest, "Invalid QR code format"
		case ledger.REASON_PASS_NOT_FOUND:
			return http.StatusNotFound, "Invalid QR code"
		}
	}
	h.logError(c, "Ledger lookup failed", err)
	return http.StatusInternalServerError, "Internal server error"
}

// ---------- Staff views ----------

type attendeeView struct {
	Name      string `json:"name"`
	School    string `json:"school"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	CheckedIn bool   `json:"checkedIn"`
}

// ListAttendees reads registrants straight from the sheet. Check-in state
// lives in the ledger and is not joined here.
func (h *Handler) ListAttendees(c *gin.Context) {
	rows, err := h.source.Rows(c.Request.Context())
	if err != nil {
		h.logError(c, "Failed to fetch attendees", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch attendees"})
		return
	}

	attendees := make([]attendeeView, 0, len(rows))
	for _, row := range rows {
		a := sheets.ParseRow(row)
		attendees = append(attendees, attendeeView{
			Name:   orNA(a.Name),
			School: orNA(a.School),
			Email:  orNA(a.Email),
			Phone:  orNA(a.Phone),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"total":     len(attendees),
		"checkedIn": 0,
		"pending":   len(attendees),
		"attendees": attendees,
	})
}

// Stats summarizes check-in progress from the ledger.
func (h *Handler) Stats(c *gin.Context) {
	st, err := h.ledger.Stats(c.Request.Context())
	if err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":             st.Total,
		"checkedIn":         st.CheckedIn,
		"pending":           st.Pending,
		"checkInPercentage": st.PercentageString(),
	})
}

func (h *Handler) internalError(c *gin.Context, err error) {
	h.logError(c, "Request failed", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

func (h *Handler) logError(c *gin.Context, msg string, err error, attrs ...any) {
	attrs = append(attrs,
		slog.String("error", err.Error()),
		slog.String("request-id", httpmiddleware.GetRequestID(c)),
	)
	h.logger.ErrorContext(c.Request.Context(), msg, attrs...)
}

// fieldText renders a JSON value the way it reads on a form. Absent, null,
// false, zero and blank values come back empty.
func fieldText(raw json.RawMessage) string {
	var v any
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return ""
	}
	switch v := v.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == 0 {
			return ""
		}
		return strings.TrimSpace(string(raw))
	case bool:
		if v {
			return "true"
		}
		return ""
	case nil:
		return ""
	default:
		return strings.TrimSpace(string(raw))
	}
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}
