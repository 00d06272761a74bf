// Package store persists consent records.
//
// Error contract: every method returns sentinel.ErrNotFound when the record
// does not exist, sentinel.ErrConflict when a write would violate uniqueness,
// and sentinel.ErrStaleVersion when an update raced another writer. Other
// errors are infrastructure failures wrapped with context.
package store

import (
	"context"
	"time"

	"consentd/internal/consent/models"
	id "consentd/pkg/domain"
)

// Store is the record persistence contract used by the lifecycle engine and
// the sweeper. Records are never deleted.
type Store interface {
	Create(ctx context.Context, r *models.Record) error
	FindByID(ctx context.Context, consentID id.ConsentID) (*models.Record, error)
	// FindGranted returns the single GRANTED record for the pair.
	FindGranted(ctx context.Context, studentID id.StudentID, purposeCode string) (*models.Record, error)
	// FindPending returns the pair's pending records that have not been discarded.
	FindPending(ctx context.Context, studentID id.StudentID, purposeCode string) ([]*models.Record, error)
	// Update writes r if its Version still matches the stored row and bumps
	// r.Version on success.
	Update(ctx context.Context, r *models.Record) error
	List(ctx context.Context, filter models.ListFilter) ([]*models.Record, error)

	ListGrantedBefore(ctx context.Context, purposeCode string, grantedBefore time.Time, limit int) ([]*models.Record, error)
	ListPendingBefore(ctx context.Context, requestedBefore time.Time, limit int) ([]*models.Record, error)
	ListUnredactedClosedBefore(ctx context.Context, closedBefore time.Time, limit int) ([]*models.Record, error)
}
