package service

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"consentd/internal/consent/audit"
	"consentd/internal/consent/models"
	"consentd/internal/consent/store"
	id "consentd/pkg/domain"
	"consentd/pkg/platform/audit/outbox"
	"consentd/pkg/platform/sentinel"
)

// staged buffers the writes of one in-memory transaction. Reads see the
// buffered writes on top of committed state; nothing reaches the underlying
// stores until commit. Listings read committed state only.
type staged struct {
	records *stagedRecords
	audit   *stagedAudit
	outbox  *stagedOutbox
}

func newStaged(base Stores) *staged {
	return &staged{
		records: &stagedRecords{Store: base.Records, latest: make(map[id.ConsentID]*models.Record)},
		audit:   &stagedAudit{Store: base.Audit},
		outbox:  &stagedOutbox{Store: base.Outbox},
	}
}

func (s *staged) stores() Stores {
	return Stores{Records: s.records, Audit: s.audit, Outbox: s.outbox}
}

// commit applies the audit entries first, so a failing audit write leaves
// records and the outbox untouched.
func (s *staged) commit(ctx context.Context) error {
	for i := range s.audit.entries {
		if err := s.audit.Store.Append(ctx, &s.audit.entries[i]); err != nil {
			return fmt.Errorf("commit audit entry: %w", err)
		}
	}
	for _, op := range s.records.ops {
		var err error
		if op.create {
			err = s.records.Store.Create(ctx, op.rec)
		} else {
			err = s.records.Store.Update(ctx, op.rec)
		}
		if err != nil {
			return fmt.Errorf("commit record %s: %w", op.rec.ID, err)
		}
	}
	for _, e := range s.outbox.entries {
		if err := s.outbox.Store.Append(ctx, e); err != nil {
			return fmt.Errorf("commit outbox entry: %w", err)
		}
	}
	return nil
}

type recordOp struct {
	create bool
	// rec carries the version the committed row holds at the time the op applies.
	rec *models.Record
}

type stagedRecords struct {
	store.Store
	latest map[id.ConsentID]*models.Record
	ops    []recordOp
}

func (r *stagedRecords) Create(ctx context.Context, rec *models.Record) error {
	if _, err := r.FindByID(ctx, rec.ID); err == nil {
		return sentinel.ErrConflict
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return err
	}
	if rec.State == models.StateGranted {
		if _, err := r.FindGranted(ctx, rec.StudentID, rec.PurposeCode); err == nil {
			return sentinel.ErrConflict
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
	}
	rec.Version = 1
	r.ops = append(r.ops, recordOp{create: true, rec: rec.Clone()})
	r.latest[rec.ID] = rec.Clone()
	return nil
}

func (r *stagedRecords) FindByID(ctx context.Context, consentID id.ConsentID) (*models.Record, error) {
	if rec, ok := r.latest[consentID]; ok {
		return rec.Clone(), nil
	}
	return r.Store.FindByID(ctx, consentID)
}

func (r *stagedRecords) FindGranted(ctx context.Context, studentID id.StudentID, purposeCode string) (*models.Record, error) {
	for _, rec := range r.latest {
		if rec.StudentID == studentID && rec.PurposeCode == purposeCode && rec.State == models.StateGranted {
			return rec.Clone(), nil
		}
	}
	rec, err := r.Store.FindGranted(ctx, studentID, purposeCode)
	if err != nil {
		return nil, err
	}
	if _, ok := r.latest[rec.ID]; ok {
		// Staged as something other than GRANTED above.
		return nil, sentinel.ErrNotFound
	}
	return rec, nil
}

func (r *stagedRecords) FindPending(ctx context.Context, studentID id.StudentID, purposeCode string) ([]*models.Record, error) {
	committed, err := r.Store.FindPending(ctx, studentID, purposeCode)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Record, 0, len(committed))
	for _, rec := range committed {
		if _, ok := r.latest[rec.ID]; !ok {
			out = append(out, rec)
		}
	}
	for _, rec := range r.latest {
		if rec.StudentID == studentID && rec.PurposeCode == purposeCode && rec.IsAwaitingProof() {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (r *stagedRecords) Update(ctx context.Context, rec *models.Record) error {
	current, err := r.FindByID(ctx, rec.ID)
	if err != nil {
		return err
	}
	if current.Version != rec.Version {
		return sentinel.ErrStaleVersion
	}
	if rec.State == models.StateGranted {
		if g, err := r.FindGranted(ctx, rec.StudentID, rec.PurposeCode); err == nil && g.ID != rec.ID {
			return sentinel.ErrConflict
		}
	}
	r.ops = append(r.ops, recordOp{rec: rec.Clone()})
	rec.Version++
	r.latest[rec.ID] = rec.Clone()
	return nil
}

type stagedAudit struct {
	audit.Store
	entries []models.AuditEntry
}

func (a *stagedAudit) pending(consentID id.ConsentID) []models.AuditEntry {
	var out []models.AuditEntry
	for _, e := range a.entries {
		if e.ConsentID == consentID {
			out = append(out, e)
		}
	}
	return out
}

// Append enforces the same contiguous sequence rule as the committed store.
func (a *stagedAudit) Append(ctx context.Context, entry *models.AuditEntry) error {
	last, err := a.LastSequence(ctx, entry.ConsentID)
	if err != nil {
		return err
	}
	next := last + 1
	if entry.Sequence < next {
		return sentinel.ErrConflict
	}
	if entry.Sequence != next {
		return fmt.Errorf("%w: audit sequence %d out of order (want %d)", sentinel.ErrInvalidInput, entry.Sequence, next)
	}
	c := *entry
	c.Details = maps.Clone(entry.Details)
	a.entries = append(a.entries, c)
	return nil
}

func (a *stagedAudit) LastSequence(ctx context.Context, consentID id.ConsentID) (int64, error) {
	last, err := a.Store.LastSequence(ctx, consentID)
	if err != nil {
		return 0, err
	}
	return last + int64(len(a.pending(consentID))), nil
}

func (a *stagedAudit) ListByConsent(ctx context.Context, consentID id.ConsentID) ([]models.AuditEntry, error) {
	committed, err := a.Store.ListByConsent(ctx, consentID)
	if err != nil {
		return nil, err
	}
	return append(committed, a.pending(consentID)...), nil
}

type stagedOutbox struct {
	outbox.Store
	entries []*outbox.Entry
}

func (o *stagedOutbox) Append(_ context.Context, entry *outbox.Entry) error {
	c := *entry
	o.entries = append(o.entries, &c)
	return nil
}
