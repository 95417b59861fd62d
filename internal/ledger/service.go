package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"entrypass/internal/metrics"
	"entrypass/internal/pass"
)

// Stats summarizes check-in progress over the ledger.
type Stats struct {
	Total      int
	CheckedIn  int
	Pending    int
	Percentage float64
}

// PercentageString formats the percentage with two decimals.
func (s Stats) PercentageString() string {
	return fmt.Sprintf("%.2f", s.Percentage)
}

// Service coordinates verification and check-in against a Store.
type Service struct {
	store   Store
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewService creates a service backed by a store.
func NewService(store Store, m *metrics.Metrics) *Service {
	return &Service{store: store, metrics: m, now: time.Now}
}

// Store exposes the underlying store for the sync loop.
func (s *Service) Store() Store {
	return s.store
}

// Issue records a freshly generated pass as not checked in.
func (s *Service) Issue(ctx context.Context, issued pass.Issued) (pass.Record, error) {
	rec := pass.NewRecord(issued.Payload)
	if err := s.store.Put(ctx, rec); err != nil {
		return pass.Record{}, err
	}
	s.metrics.PassIssued()
	return rec, nil
}

// Verify looks up the pass behind scanned QR data. It never mutates the ledger.
func (s *Service) Verify(ctx context.Context, qrData string) (pass.Record, error) {
	payload, err := pass.ParsePayload(qrData)
	if err != nil {
		return pass.Record{}, NewInvalidPayloadError("Invalid QR code format", err)
	}
	return s.store.Get(ctx, payload.ID)
}

// CheckIn marks the pass behind scanned QR data as used. A second check-in
// returns REASON_ALREADY_CHECKED_IN and the record with the original time.
func (s *Service) CheckIn(ctx context.Context, qrData string) (pass.Record, error) {
	payload, err := pass.ParsePayload(qrData)
	if err != nil {
		s.metrics.CheckIn(metrics.CheckInInvalid)
		return pass.Record{}, NewInvalidPayloadError("Invalid QR code format", err)
	}

	rec, err := s.store.CheckIn(ctx, payload.ID, s.now().UTC())
	s.metrics.CheckIn(checkInResult(err))
	return rec, err
}

// Stats counts checked-in and pending passes. An empty ledger reports 0%.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	recs, err := s.store.List(ctx)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{Total: len(recs)}
	for _, rec := range recs {
		if rec.CheckedIn {
			st.CheckedIn++
		}
	}
	st.Pending = st.Total - st.CheckedIn
	if st.Total > 0 {
		st.Percentage = float64(st.CheckedIn) / float64(st.Total) * 100
	}
	return st, nil
}

// Count returns the number of passes in the ledger.
func (s *Service) Count(ctx context.Context) (int, error) {
	recs, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

func checkInResult(err error) string {
	if err == nil {
		return metrics.CheckInOK
	}
	var ledgerErr *Error
	if errors.As(err, &ledgerErr) {
		switch ledgerErr.Reason {
		case REASON_PASS_NOT_FOUND:
			return metrics.CheckInNotFound
		case REASON_ALREADY_CHECKED_IN:
			return metrics.CheckInConflict
		}
	}
	return metrics.CheckInError
}
