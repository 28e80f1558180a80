// Package reconcile merges scraped auction listings and email-derived sale
// outcomes into a single authoritative row per property. Ingestion is
// idempotent, conflicts resolve by record timestamp (not arrival order), and
// a failed ingest never leaves a row partially mutated.
package reconcile

import (
	"iter"
	"sort"
	"sync"

	"github.com/nsyte-agents/auction-sync/internal/model"
)

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithStrict rejects outcomes for properties that have no row yet instead
// of creating a placeholder.
func WithStrict() Option {
	return func(r *Reconciler) { r.strict = true }
}

// WithZones sets the state-to-zone table used to stamp rows.
func WithZones(zm model.ZoneMap) Option {
	return func(r *Reconciler) { r.zones = zm }
}

// Reconciler owns the reconciled row table. Rows are only reachable through
// IngestListing, IngestOutcome and Snapshot; sinks read snapshots and never
// mutate state directly. Updates to different properties may run
// concurrently; updates to the same property serialize on its entry lock.
type Reconciler struct {
	mu      sync.RWMutex
	entries map[string]*entry

	strict bool
	zones  model.ZoneMap
}

type entry struct {
	mu  sync.Mutex
	row model.ReconciledRow
}

// New creates an empty Reconciler.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{
		entries: make(map[string]*entry),
		zones:   model.DefaultZones(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Restore installs previously persisted rows as-is. Used to hydrate the
// table from the store before ingesting a new batch.
func (r *Reconciler) Restore(rows ...model.ReconciledRow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		if row.PropertyID == "" {
			continue
		}
		r.entries[row.PropertyID] = &entry{row: row}
	}
}

func (r *Reconciler) lookup(id string) (*entry, bool) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	return e, ok
}

func (r *Reconciler) getOrCreate(id string) (*entry, bool) {
	if e, ok := r.lookup(id); ok {
		return e, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		return e, false
	}
	e := &entry{row: model.ReconciledRow{
		PropertyID:    id,
		ListingStatus: model.ListingStatusUnknown,
		SoldTo:        model.BuyerUnsold,
	}}
	r.entries[id] = e
	return e, true
}

// IngestListing merges a scraped listing into the row table. Duplicate and
// out-of-order listings are absorbed idempotently; listing fields are only
// overwritten by a strictly newer scrape, and a sold row never regresses to
// an active listing status.
func (r *Reconciler) IngestListing(rec model.ListingRecord) error {
	if rec.PropertyID == "" {
		return ErrEmptyPropertyID
	}

	e, _ := r.getOrCreate(rec.PropertyID)
	e.mu.Lock()
	defer e.mu.Unlock()
	row := &e.row

	// Stale scrape: the row already carries listing data at least this new.
	if row.Listed() && !rec.ScrapedAt.After(row.ListingAsOf) {
		return nil
	}

	row.Address = pickString(rec.Address, row.Address)
	row.State = pickString(rec.State, row.State)
	row.Zone = r.zones.ZoneFor(row.State)
	if rec.AuctionDate != nil {
		row.AuctionDate = rec.AuctionDate
	}
	if rec.OpeningBid != nil {
		row.OpeningBid = rec.OpeningBid
	}
	if rec.EstMarketValue != nil {
		row.EstMarketValue = rec.EstMarketValue
	}

	status := rec.Status
	if status == "" {
		status = model.ListingStatusUnknown
	}
	if row.Sold() && status == model.ListingStatusActive {
		// A sale outcome is already recorded; a scrape still showing the
		// listing as active must not reopen it.
	} else {
		row.ListingStatus = status
	}

	row.ListingAsOf = rec.ScrapedAt
	if rec.ScrapedAt.After(row.LastUpdated) {
		row.LastUpdated = rec.ScrapedAt
	}
	recomputeSurplus(row)
	return nil
}

// IngestOutcome merges an email-derived sale outcome into the row table.
// The outcome with the latest observed_at wins; older outcomes only fill
// fields that are currently absent. Contradictory records (a final bid with
// an unsold buyer) are rejected with ErrInvalidAmount, records naming a
// buyer type outside the known set with ErrInvalidBuyer; either way the row
// is left untouched.
func (r *Reconciler) IngestOutcome(rec model.OutcomeRecord) error {
	if rec.PropertyID == "" {
		return ErrEmptyPropertyID
	}
	if rec.SoldTo != "" && !rec.SoldTo.Valid() {
		return ErrInvalidBuyer
	}
	if rec.FinalBid != nil && rec.SoldTo == model.BuyerUnsold {
		return ErrInvalidAmount
	}
	if r.strict {
		if _, ok := r.lookup(rec.PropertyID); !ok {
			return ErrUnknownProperty
		}
	}

	e, _ := r.getOrCreate(rec.PropertyID)
	e.mu.Lock()
	defer e.mu.Unlock()
	row := &e.row

	if row.OutcomeAsOf.IsZero() || !rec.ObservedAt.Before(row.OutcomeAsOf) {
		// Latest outcome: authoritative for the buyer; a nil final bid
		// means unknown and keeps any previously reported amount.
		if rec.SoldTo != "" {
			row.SoldTo = rec.SoldTo
		}
		if rec.FinalBid != nil {
			row.FinalBid = rec.FinalBid
		}
		row.OutcomeAsOf = rec.ObservedAt
	} else {
		// Older outcome: only fills gaps, never overwrites a later fact.
		if row.FinalBid == nil && rec.FinalBid != nil {
			row.FinalBid = rec.FinalBid
		}
	}

	row.Address = pickString(row.Address, rec.Address)
	if row.State == "" && rec.Address != "" {
		// Placeholder rows created from an email carry no scraped state.
		row.State = model.ExtractState(rec.Address)
		row.Zone = r.zones.ZoneFor(row.State)
	}
	if row.Sold() && row.ListingStatus != model.ListingStatusRemoved {
		row.ListingStatus = model.ListingStatusClosed
	}
	if rec.ObservedAt.After(row.LastUpdated) {
		row.LastUpdated = rec.ObservedAt
	}
	recomputeSurplus(row)
	return nil
}

// Snapshot returns a lazy sequence of row copies ordered by property ID.
// The sequence is restartable and safe to consume at any time; it reflects
// the table as of each iteration.
func (r *Reconciler) Snapshot() iter.Seq[model.ReconciledRow] {
	return func(yield func(model.ReconciledRow) bool) {
		r.mu.RLock()
		ids := make([]string, 0, len(r.entries))
		for id := range r.entries {
			ids = append(ids, id)
		}
		r.mu.RUnlock()
		sort.Strings(ids)

		for _, id := range ids {
			e, ok := r.lookup(id)
			if !ok {
				continue
			}
			e.mu.Lock()
			row := e.row
			e.mu.Unlock()
			if !yield(row) {
				return
			}
		}
	}
}

// Get returns a copy of the row for a property, if one exists.
func (r *Reconciler) Get(propertyID string) (model.ReconciledRow, bool) {
	e, ok := r.lookup(propertyID)
	if !ok {
		return model.ReconciledRow{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.row, true
}

// Rows collects the current snapshot into a slice.
func (r *Reconciler) Rows() []model.ReconciledRow {
	var rows []model.ReconciledRow
	for row := range r.Snapshot() {
		rows = append(rows, row)
	}
	return rows
}

// Len returns the number of reconciled rows.
func (r *Reconciler) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// recomputeSurplus derives the surplus from the current row state. The
// surplus exists only for third-party sales with both bids known; any stale
// value is cleared so a buyer downgrade never leaves a phantom number.
func recomputeSurplus(row *model.ReconciledRow) {
	if row.SoldTo == model.BuyerThirdParty && row.FinalBid != nil && row.OpeningBid != nil {
		s := *row.FinalBid - *row.OpeningBid
		row.Surplus = &s
		return
	}
	row.Surplus = nil
}

func pickString(preferred, fallback string) string {
	if preferred != "" {
		return preferred
	}
	return fallback
}
