package model

import "time"

// ListingStatus is the marketplace status of an auction listing.
type ListingStatus string

const (
	ListingStatusActive  ListingStatus = "active"
	ListingStatusClosed  ListingStatus = "closed"
	ListingStatusRemoved ListingStatus = "removed"
	ListingStatusUnknown ListingStatus = "unknown"
)

// BuyerType identifies who (if anyone) bought the property at auction.
type BuyerType string

const (
	BuyerUnsold        BuyerType = "unsold"
	BuyerThirdParty    BuyerType = "third_party"
	BuyerOriginalOwner BuyerType = "original_owner"
)

// Valid reports whether b is one of the known buyer types.
func (b BuyerType) Valid() bool {
	switch b {
	case BuyerUnsold, BuyerThirdParty, BuyerOriginalOwner:
		return true
	}
	return false
}

// ListingRecord is one scraped auction listing. Records are immutable once
// produced; a newer scrape of the same property supersedes the older one.
type ListingRecord struct {
	PropertyID     string        `json:"property_id"`
	Address        string        `json:"address"`
	State          string        `json:"state"`
	AuctionDate    *time.Time    `json:"auction_date,omitempty"`
	OpeningBid     *int64        `json:"opening_bid,omitempty"`      // cents
	EstMarketValue *int64        `json:"est_market_value,omitempty"` // cents
	Status         ListingStatus `json:"status"`
	ScrapedAt      time.Time     `json:"scraped_at"`
}

// OutcomeRecord is one sale outcome parsed from a notification email.
// Multiple records may reference the same property (correction emails).
type OutcomeRecord struct {
	PropertyID string    `json:"property_id"`
	Address    string    `json:"address,omitempty"`
	SoldTo     BuyerType `json:"sold_to"`
	FinalBid   *int64    `json:"final_bid,omitempty"` // cents
	ObservedAt time.Time `json:"observed_at"`
	MessageID  string    `json:"message_id,omitempty"`
}

// ReconciledRow is the single authoritative record per property. Rows are
// created on first sight of a property and mutated in place, never replaced.
type ReconciledRow struct {
	PropertyID     string        `json:"property_id"`
	Address        string        `json:"address,omitempty"`
	State          string        `json:"state,omitempty"`
	Zone           string        `json:"zone,omitempty"`
	AuctionDate    *time.Time    `json:"auction_date,omitempty"`
	OpeningBid     *int64        `json:"opening_bid,omitempty"`
	EstMarketValue *int64        `json:"est_market_value,omitempty"`
	ListingStatus  ListingStatus `json:"listing_status"`
	SoldTo         BuyerType     `json:"sold_to"`
	FinalBid       *int64        `json:"final_bid,omitempty"`
	Surplus        *int64        `json:"surplus,omitempty"`

	// ListingAsOf is the scrape time of the listing data currently in the
	// row; OutcomeAsOf the observed_at of the winning outcome. LastUpdated
	// is the later of the two.
	ListingAsOf time.Time `json:"listing_as_of,omitempty"`
	OutcomeAsOf time.Time `json:"outcome_as_of,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

// Sold reports whether the row is in a sold state (either buyer type).
func (r *ReconciledRow) Sold() bool {
	return r.SoldTo == BuyerThirdParty || r.SoldTo == BuyerOriginalOwner
}

// Listed reports whether listing data has ever been ingested for the row.
// Placeholder rows created by an early outcome are not listed.
func (r *ReconciledRow) Listed() bool {
	return !r.ListingAsOf.IsZero()
}
