package listings

import (
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/nsyte-agents/auction-sync/internal/model"
)

// weekdayPrefixRE matches a leading weekday name like "Tuesday," or "Tue ".
var weekdayPrefixRE = regexp.MustCompile(
	`(?i)^\s*(mon|tue|tues|wed|thu|thur|thurs|fri|sat|sun)[a-z]*\s*,?\s*`)

// auctionDateLayout is how the marketplace renders auction dates.
const auctionDateLayout = "Jan 2, 2006"

// StripWeekdayPrefix removes a leading weekday name from a date string,
// turning "Tuesday, Sep 2, 2025" into "Sep 2, 2025".
func StripWeekdayPrefix(s string) string {
	return strings.TrimSpace(weekdayPrefixRE.ReplaceAllString(s, ""))
}

// ParseAuctionDate parses a marketplace auction date, tolerating a weekday
// prefix. The empty string parses to nil.
func ParseAuctionDate(s string) (*time.Time, error) {
	s = StripWeekdayPrefix(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(auctionDateLayout, s)
	if err != nil {
		return nil, eris.Wrapf(err, "listings: parse auction date %q", s)
	}
	t = t.UTC()
	return &t, nil
}

// fromSearchItem converts a raw search result into a listing record.
func fromSearchItem(item searchItem, scrapedAt time.Time) (model.ListingRecord, error) {
	address := strings.TrimSpace(item.Address)
	if address == "" {
		return model.ListingRecord{}, eris.New("listings: listing has no address")
	}

	openingBid, err := model.ParseCents(item.OpeningBid)
	if err != nil {
		return model.ListingRecord{}, eris.Wrap(err, "listings: opening bid")
	}
	estValue, err := model.ParseCents(item.EstMarketValue)
	if err != nil {
		return model.ListingRecord{}, eris.Wrap(err, "listings: est market value")
	}
	auctionDate, err := ParseAuctionDate(item.AuctionDate)
	if err != nil {
		return model.ListingRecord{}, err
	}

	state := strings.ToUpper(strings.TrimSpace(item.State))
	if state == "" {
		state = model.ExtractState(address)
	}

	return model.ListingRecord{
		PropertyID:     model.PropertyID(address),
		Address:        address,
		State:          state,
		AuctionDate:    auctionDate,
		OpeningBid:     openingBid,
		EstMarketValue: estValue,
		Status:         normalizeStatus(item, auctionDate, scrapedAt),
		ScrapedAt:      scrapedAt,
	}, nil
}

// normalizeStatus maps the marketplace status text to a listing status.
// A listing whose auction date was yesterday or earlier is closed
// regardless of what the status text says, since the marketplace leaves
// stale listings up for a while after the sale.
func normalizeStatus(item searchItem, auctionDate *time.Time, now time.Time) model.ListingStatus {
	if auctionDate != nil {
		cutoff := now.AddDate(0, 0, -1).Truncate(24 * time.Hour)
		if !auctionDate.After(cutoff) {
			return model.ListingStatusClosed
		}
	}
	switch strings.ToLower(strings.TrimSpace(item.Status)) {
	case "removed", "cancelled", "canceled":
		return model.ListingStatusRemoved
	case "sold", "closed", "completed":
		return model.ListingStatusClosed
	case "active", "scheduled", "coming soon", "upcoming":
		return model.ListingStatusActive
	}
	if item.Completed {
		return model.ListingStatusClosed
	}
	return model.ListingStatusActive
}
