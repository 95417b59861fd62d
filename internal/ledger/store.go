// Package ledger is the authoritative record of issued passes, their
// check-in state and the emails that have already received a pass.
package ledger

import (
	"context"
	"time"

	"entrypass/internal/pass"
)

// Store persists passes and the processed email set.
//
// CheckIn must be an atomic compare-and-set on the checked-in flag: of any
// number of concurrent calls for one id exactly one succeeds, the others get
// REASON_ALREADY_CHECKED_IN together with the record holding the winning time.
type Store interface {
	Put(ctx context.Context, rec pass.Record) error
	Get(ctx context.Context, id string) (pass.Record, error)
	CheckIn(ctx context.Context, id string, at time.Time) (pass.Record, error)
	List(ctx context.Context) ([]pass.Record, error)

	MarkProcessed(ctx context.Context, email string) error
	IsProcessed(ctx context.Context, email string) (bool, error)
	ProcessedCount(ctx context.Context) (int, error)

	Ping(ctx context.Context) error
}
