package reconcile

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsyte-agents/auction-sync/internal/model"
)

var baseTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func listing(id string, scrapedAt time.Time) model.ListingRecord {
	return model.ListingRecord{
		PropertyID: id,
		Address:    "123 Main St, Dallas, TX 75201",
		State:      "TX",
		OpeningBid: model.Cents(150_000_00),
		Status:     model.ListingStatusActive,
		ScrapedAt:  scrapedAt,
	}
}

func outcome(id string, observedAt time.Time) model.OutcomeRecord {
	return model.OutcomeRecord{
		PropertyID: id,
		SoldTo:     model.BuyerThirdParty,
		FinalBid:   model.Cents(175_000_00),
		ObservedAt: observedAt,
	}
}

// --- Listings ---

func TestIngestListing_CreatesRow(t *testing.T) {
	r := New()

	require.NoError(t, r.IngestListing(listing("p1", baseTime)))

	row, ok := r.Get("p1")
	require.True(t, ok)
	assert.Equal(t, "p1", row.PropertyID)
	assert.Equal(t, "TX", row.State)
	assert.Equal(t, "CENTRAL", row.Zone)
	assert.Equal(t, model.ListingStatusActive, row.ListingStatus)
	assert.Equal(t, model.BuyerUnsold, row.SoldTo)
	require.NotNil(t, row.OpeningBid)
	assert.Equal(t, int64(150_000_00), *row.OpeningBid)
	assert.Equal(t, baseTime, row.LastUpdated)
}

func TestIngestListing_EmptyPropertyID(t *testing.T) {
	r := New()
	err := r.IngestListing(model.ListingRecord{ScrapedAt: baseTime})
	assert.ErrorIs(t, err, ErrEmptyPropertyID)
	assert.Equal(t, 0, r.Len())
}

func TestIngestListing_Idempotent(t *testing.T) {
	r := New()
	rec := listing("p1", baseTime)

	require.NoError(t, r.IngestListing(rec))
	first, _ := r.Get("p1")

	require.NoError(t, r.IngestListing(rec))
	require.NoError(t, r.IngestListing(rec))

	assert.Equal(t, 1, r.Len())
	second, _ := r.Get("p1")
	assert.Equal(t, first, second)
}

func TestIngestListing_StaleScrapeIgnored(t *testing.T) {
	r := New()

	newer := listing("p1", baseTime)
	newer.OpeningBid = model.Cents(200_000_00)
	require.NoError(t, r.IngestListing(newer))

	older := listing("p1", baseTime.Add(-time.Hour))
	older.OpeningBid = model.Cents(100_000_00)
	require.NoError(t, r.IngestListing(older))

	row, _ := r.Get("p1")
	assert.Equal(t, int64(200_000_00), *row.OpeningBid)
	assert.Equal(t, baseTime, row.ListingAsOf)
}

func TestIngestListing_NewerScrapeWins(t *testing.T) {
	r := New()
	require.NoError(t, r.IngestListing(listing("p1", baseTime)))

	updated := listing("p1", baseTime.Add(time.Hour))
	updated.OpeningBid = model.Cents(160_000_00)
	updated.Status = model.ListingStatusClosed
	require.NoError(t, r.IngestListing(updated))

	row, _ := r.Get("p1")
	assert.Equal(t, int64(160_000_00), *row.OpeningBid)
	assert.Equal(t, model.ListingStatusClosed, row.ListingStatus)
}

func TestIngestListing_BlankFieldsKeepPrevious(t *testing.T) {
	r := New()
	require.NoError(t, r.IngestListing(listing("p1", baseTime)))

	sparse := model.ListingRecord{
		PropertyID: "p1",
		Status:     model.ListingStatusActive,
		ScrapedAt:  baseTime.Add(time.Hour),
	}
	require.NoError(t, r.IngestListing(sparse))

	row, _ := r.Get("p1")
	assert.Equal(t, "123 Main St, Dallas, TX 75201", row.Address)
	assert.Equal(t, "TX", row.State)
	require.NotNil(t, row.OpeningBid)
}

func TestIngestListing_SoldRowNeverReactivates(t *testing.T) {
	r := New()
	require.NoError(t, r.IngestListing(listing("p1", baseTime)))
	require.NoError(t, r.IngestOutcome(outcome("p1", baseTime.Add(time.Hour))))

	// A later scrape still showing the stale active listing.
	require.NoError(t, r.IngestListing(listing("p1", baseTime.Add(2*time.Hour))))

	row, _ := r.Get("p1")
	assert.Equal(t, model.ListingStatusClosed, row.ListingStatus)
	assert.Equal(t, model.BuyerThirdParty, row.SoldTo)
}

func TestIngestListing_RemovedStatus(t *testing.T) {
	r := New()
	require.NoError(t, r.IngestListing(listing("p1", baseTime)))

	removed := listing("p1", baseTime.Add(time.Hour))
	removed.Status = model.ListingStatusRemoved
	require.NoError(t, r.IngestListing(removed))

	row, _ := r.Get("p1")
	assert.Equal(t, model.ListingStatusRemoved, row.ListingStatus)
}

// --- Outcomes ---

func TestIngestOutcome_MarksSoldAndComputesSurplus(t *testing.T) {
	r := New()
	require.NoError(t, r.IngestListing(listing("p1", baseTime)))
	require.NoError(t, r.IngestOutcome(outcome("p1", baseTime.Add(time.Hour))))

	row, _ := r.Get("p1")
	assert.Equal(t, model.BuyerThirdParty, row.SoldTo)
	assert.Equal(t, model.ListingStatusClosed, row.ListingStatus)
	require.NotNil(t, row.Surplus)
	assert.Equal(t, int64(25_000_00), *row.Surplus)
}

func TestIngestOutcome_OriginalOwnerNoSurplus(t *testing.T) {
	r := New()
	require.NoError(t, r.IngestListing(listing("p1", baseTime)))

	o := outcome("p1", baseTime.Add(time.Hour))
	o.SoldTo = model.BuyerOriginalOwner
	require.NoError(t, r.IngestOutcome(o))

	row, _ := r.Get("p1")
	assert.Equal(t, model.BuyerOriginalOwner, row.SoldTo)
	assert.Nil(t, row.Surplus)
	require.NotNil(t, row.FinalBid)
}

func TestIngestOutcome_InvalidAmountRejected(t *testing.T) {
	r := New()
	require.NoError(t, r.IngestListing(listing("p1", baseTime)))
	before, _ := r.Get("p1")

	bad := model.OutcomeRecord{
		PropertyID: "p1",
		SoldTo:     model.BuyerUnsold,
		FinalBid:   model.Cents(100_00),
		ObservedAt: baseTime.Add(time.Hour),
	}
	err := r.IngestOutcome(bad)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	// The row is untouched by the rejected record.
	after, _ := r.Get("p1")
	assert.Equal(t, before, after)
}

func TestIngestOutcome_InvalidAmountCreatesNoRow(t *testing.T) {
	r := New()

	bad := model.OutcomeRecord{
		PropertyID: "ghost",
		SoldTo:     model.BuyerUnsold,
		FinalBid:   model.Cents(100_00),
		ObservedAt: baseTime,
	}
	assert.ErrorIs(t, r.IngestOutcome(bad), ErrInvalidAmount)
	assert.Equal(t, 0, r.Len())
}

func TestIngestOutcome_UnknownBuyerRejected(t *testing.T) {
	r := New()
	require.NoError(t, r.IngestListing(listing("p1", baseTime)))
	before, _ := r.Get("p1")

	bad := model.OutcomeRecord{
		PropertyID: "p1",
		SoldTo:     model.BuyerType("pending"),
		FinalBid:   model.Cents(100_00),
		ObservedAt: baseTime.Add(time.Hour),
	}
	err := r.IngestOutcome(bad)
	assert.ErrorIs(t, err, ErrInvalidBuyer)

	after, _ := r.Get("p1")
	assert.Equal(t, before, after)
}

func TestIngestOutcome_UnknownBuyerCreatesNoRow(t *testing.T) {
	r := New()

	bad := model.OutcomeRecord{
		PropertyID: "ghost",
		SoldTo:     model.BuyerType("alien"),
		ObservedAt: baseTime,
	}
	assert.ErrorIs(t, r.IngestOutcome(bad), ErrInvalidBuyer)
	assert.Equal(t, 0, r.Len())
}

func TestIngestOutcome_EmptyPropertyID(t *testing.T) {
	r := New()
	err := r.IngestOutcome(model.OutcomeRecord{SoldTo: model.BuyerThirdParty, ObservedAt: baseTime})
	assert.ErrorIs(t, err, ErrEmptyPropertyID)
}

func TestIngestOutcome_PlaceholderRow(t *testing.T) {
	r := New()

	o := outcome("p1", baseTime)
	o.Address = "9 Oak Ave, Phoenix, AZ 85001"
	require.NoError(t, r.IngestOutcome(o))

	row, ok := r.Get("p1")
	require.True(t, ok)
	assert.False(t, row.Listed())
	assert.Equal(t, "AZ", row.State)
	assert.Equal(t, "WEST", row.Zone)
	assert.Equal(t, model.BuyerThirdParty, row.SoldTo)
	// Surplus needs an opening bid, which only a listing carries.
	assert.Nil(t, row.Surplus)
}

func TestIngestOutcome_PlaceholderThenListing(t *testing.T) {
	r := New()
	require.NoError(t, r.IngestOutcome(outcome("p1", baseTime.Add(time.Hour))))
	require.NoError(t, r.IngestListing(listing("p1", baseTime)))

	assert.Equal(t, 1, r.Len())
	row, _ := r.Get("p1")
	assert.True(t, row.Listed())
	assert.Equal(t, model.BuyerThirdParty, row.SoldTo)
	assert.Equal(t, model.ListingStatusClosed, row.ListingStatus)
	require.NotNil(t, row.Surplus)
	assert.Equal(t, int64(25_000_00), *row.Surplus)
}

func TestIngestOutcome_LatestObservedWins(t *testing.T) {
	r := New()
	require.NoError(t, r.IngestListing(listing("p1", baseTime)))

	first := outcome("p1", baseTime.Add(time.Hour))
	correction := outcome("p1", baseTime.Add(2*time.Hour))
	correction.SoldTo = model.BuyerOriginalOwner
	correction.FinalBid = model.Cents(160_000_00)

	require.NoError(t, r.IngestOutcome(first))
	require.NoError(t, r.IngestOutcome(correction))

	row, _ := r.Get("p1")
	assert.Equal(t, model.BuyerOriginalOwner, row.SoldTo)
	assert.Equal(t, int64(160_000_00), *row.FinalBid)
	assert.Nil(t, row.Surplus)
}

func TestIngestOutcome_OrderIndependent(t *testing.T) {
	older := outcome("p1", baseTime.Add(time.Hour))
	newer := outcome("p1", baseTime.Add(2*time.Hour))
	newer.SoldTo = model.BuyerOriginalOwner
	newer.FinalBid = nil // correction without a reported amount

	inOrder := New()
	require.NoError(t, inOrder.IngestListing(listing("p1", baseTime)))
	require.NoError(t, inOrder.IngestOutcome(older))
	require.NoError(t, inOrder.IngestOutcome(newer))

	reversed := New()
	require.NoError(t, reversed.IngestListing(listing("p1", baseTime)))
	require.NoError(t, reversed.IngestOutcome(newer))
	require.NoError(t, reversed.IngestOutcome(older))

	a, _ := inOrder.Get("p1")
	b, _ := reversed.Get("p1")
	assert.Equal(t, a, b)
	assert.Equal(t, model.BuyerOriginalOwner, a.SoldTo)
	// The nil amount in the correction keeps the earlier reported bid.
	require.NotNil(t, a.FinalBid)
	assert.Equal(t, int64(175_000_00), *a.FinalBid)
}

func TestIngestOutcome_OlderOutcomeOnlyFillsGaps(t *testing.T) {
	r := New()
	require.NoError(t, r.IngestListing(listing("p1", baseTime)))

	newer := outcome("p1", baseTime.Add(2*time.Hour))
	newer.FinalBid = nil
	require.NoError(t, r.IngestOutcome(newer))

	older := outcome("p1", baseTime.Add(time.Hour))
	older.SoldTo = model.BuyerOriginalOwner
	require.NoError(t, r.IngestOutcome(older))

	row, _ := r.Get("p1")
	// Buyer from the newest record stands; the older amount fills the gap.
	assert.Equal(t, model.BuyerThirdParty, row.SoldTo)
	require.NotNil(t, row.FinalBid)
	assert.Equal(t, int64(175_000_00), *row.FinalBid)
	assert.Equal(t, baseTime.Add(2*time.Hour), row.OutcomeAsOf)
}

func TestIngestOutcome_Idempotent(t *testing.T) {
	r := New()
	require.NoError(t, r.IngestListing(listing("p1", baseTime)))
	o := outcome("p1", baseTime.Add(time.Hour))

	require.NoError(t, r.IngestOutcome(o))
	first, _ := r.Get("p1")

	require.NoError(t, r.IngestOutcome(o))
	second, _ := r.Get("p1")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, r.Len())
}

func TestIngestOutcome_SurplusClearedOnDowngrade(t *testing.T) {
	r := New()
	require.NoError(t, r.IngestListing(listing("p1", baseTime)))
	require.NoError(t, r.IngestOutcome(outcome("p1", baseTime.Add(time.Hour))))

	row, _ := r.Get("p1")
	require.NotNil(t, row.Surplus)

	downgrade := model.OutcomeRecord{
		PropertyID: "p1",
		SoldTo:     model.BuyerOriginalOwner,
		ObservedAt: baseTime.Add(2 * time.Hour),
	}
	require.NoError(t, r.IngestOutcome(downgrade))

	row, _ = r.Get("p1")
	assert.Nil(t, row.Surplus)
}

// --- Strict mode ---

func TestStrict_UnknownPropertyRejected(t *testing.T) {
	r := New(WithStrict())

	err := r.IngestOutcome(outcome("never-listed", baseTime))
	assert.ErrorIs(t, err, ErrUnknownProperty)
	assert.Equal(t, 0, r.Len())
}

func TestStrict_KnownPropertyAccepted(t *testing.T) {
	r := New(WithStrict())
	require.NoError(t, r.IngestListing(listing("p1", baseTime)))
	require.NoError(t, r.IngestOutcome(outcome("p1", baseTime.Add(time.Hour))))

	row, _ := r.Get("p1")
	assert.True(t, row.Sold())
}

// --- Snapshot ---

func TestSnapshot_OrderedByPropertyID(t *testing.T) {
	r := New()
	for _, id := range []string{"charlie", "alpha", "bravo"} {
		require.NoError(t, r.IngestListing(listing(id, baseTime)))
	}

	var ids []string
	for row := range r.Snapshot() {
		ids = append(ids, row.PropertyID)
	}
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, ids)
}

func TestSnapshot_Restartable(t *testing.T) {
	r := New()
	require.NoError(t, r.IngestListing(listing("a", baseTime)))
	require.NoError(t, r.IngestListing(listing("b", baseTime)))

	seq := r.Snapshot()

	var first []string
	for row := range seq {
		first = append(first, row.PropertyID)
	}
	var second []string
	for row := range seq {
		second = append(second, row.PropertyID)
	}
	assert.Equal(t, first, second)
}

func TestSnapshot_EarlyStop(t *testing.T) {
	r := New()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, r.IngestListing(listing(id, baseTime)))
	}

	var got []string
	for row := range r.Snapshot() {
		got = append(got, row.PropertyID)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestSnapshot_ReflectsLaterIngests(t *testing.T) {
	r := New()
	seq := r.Snapshot()

	require.NoError(t, r.IngestListing(listing("p1", baseTime)))

	var count int
	for range seq {
		count++
	}
	assert.Equal(t, 1, count)
}

// --- Restore ---

func TestRestore_HydratesTable(t *testing.T) {
	src := New()
	require.NoError(t, src.IngestListing(listing("p1", baseTime)))
	require.NoError(t, src.IngestOutcome(outcome("p1", baseTime.Add(time.Hour))))

	dst := New()
	dst.Restore(src.Rows()...)

	// Re-ingesting the same records against the restored table changes nothing.
	require.NoError(t, dst.IngestListing(listing("p1", baseTime)))
	require.NoError(t, dst.IngestOutcome(outcome("p1", baseTime.Add(time.Hour))))

	a, _ := src.Get("p1")
	b, _ := dst.Get("p1")
	assert.Equal(t, a, b)
}

// --- Concurrency ---

func TestConcurrentIngest(t *testing.T) {
	r := New()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 50 {
				id := string(rune('a' + j%5))
				_ = r.IngestListing(listing(id, baseTime.Add(time.Duration(i*50+j)*time.Second)))
				_ = r.IngestOutcome(outcome(id, baseTime.Add(time.Duration(i*50+j)*time.Second)))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, r.Len())
	for row := range r.Snapshot() {
		assert.Equal(t, model.BuyerThirdParty, row.SoldTo)
		require.NotNil(t, row.Surplus)
		assert.Equal(t, int64(25_000_00), *row.Surplus)
	}
}

// --- End to end ---

func TestAuctionLifecycle(t *testing.T) {
	r := New()

	// Day 1: listing appears.
	l := listing("p1", baseTime)
	require.NoError(t, r.IngestListing(l))

	// Day 2: rescrape with a revised opening bid.
	l2 := listing("p1", baseTime.Add(24*time.Hour))
	l2.OpeningBid = model.Cents(140_000_00)
	require.NoError(t, r.IngestListing(l2))

	// Day 3: sold email.
	require.NoError(t, r.IngestOutcome(outcome("p1", baseTime.Add(48*time.Hour))))

	// Day 4: correction email with the true final amount.
	correction := outcome("p1", baseTime.Add(72*time.Hour))
	correction.FinalBid = model.Cents(181_500_00)
	require.NoError(t, r.IngestOutcome(correction))

	row, _ := r.Get("p1")
	assert.Equal(t, model.ListingStatusClosed, row.ListingStatus)
	assert.Equal(t, model.BuyerThirdParty, row.SoldTo)
	assert.Equal(t, int64(140_000_00), *row.OpeningBid)
	assert.Equal(t, int64(181_500_00), *row.FinalBid)
	assert.Equal(t, int64(41_500_00), *row.Surplus)
	assert.Equal(t, baseTime.Add(72*time.Hour), row.LastUpdated)
	assert.Equal(t, 1, r.Len())
}
