// Package mailparse turns auction notification emails into typed records.
// Two subject shapes are recognized:
//
//	Property Removed: 816 Bahia Lane, Bessemer, AL 35023 has been removed ...
//	Transaction Update: 107 Vaughan Memorial Dr, Selma, AL 36701 - Sold To 3rd Party.
//
// A "Transaction Update" counts as a sale only when the subject carries a
// "- Sold" suffix; the address sits strictly between the colon and that
// suffix. Other transaction updates are treated as removals. The final bid
// is anchored to one sentence in the body of third-party sale emails.
package mailparse

import (
	"regexp"
	"strings"
	"time"

	"github.com/nsyte-agents/auction-sync/internal/model"
)

var (
	subjRemovedRE    = regexp.MustCompile(`(?i)^\s*Property\s+Removed:\s*(.*?)\s*has\s+been\s+removed`)
	subjUpdateSoldRE = regexp.MustCompile(`(?i)^\s*Transaction\s+Update:\s*(.*?)\s*-\s*Sold\b(.*)$`)
	subjUpdateAnyRE  = regexp.MustCompile(`(?i)^\s*Transaction\s+Update:\s*(.*?)(?:\s*-\s*.*)?\s*$`)

	amountAnchorRE = regexp.MustCompile(
		`(?i)was\s+sold\s+at\s+auction\s+today\s+for\s*(?:USD|US\$)?\s*\$?\s*([0-9]{1,3}(?:,[0-9]{3})*(?:\.[0-9]{2})?)\.?`)
)

// Message is a fetched mailbox message ready for parsing.
type Message struct {
	ID       string
	Subject  string
	Body     string
	Received time.Time
}

// Event is the typed result of parsing one message: either a sale outcome
// or a listing removal, never both.
type Event struct {
	Outcome *model.OutcomeRecord
	Removal *model.ListingRecord
}

// ParseMessage parses a mailbox message. Messages with unrecognized
// subjects yield a nil event so callers can mark them read and move on.
func ParseMessage(msg Message) *Event {
	subject := strings.TrimSpace(msg.Subject)

	if m := subjRemovedRE.FindStringSubmatch(subject); m != nil {
		return removalEvent(m[1], msg)
	}

	if m := subjUpdateSoldRE.FindStringSubmatch(subject); m != nil {
		address := collapseSpaces(m[1])
		rec := &model.OutcomeRecord{
			PropertyID: model.PropertyID(address),
			Address:    address,
			SoldTo:     buyerFromSuffix(m[2]),
			ObservedAt: msg.Received,
			MessageID:  msg.ID,
		}
		if rec.SoldTo == model.BuyerThirdParty {
			rec.FinalBid = ExtractFinalBid(msg.Body)
		}
		return &Event{Outcome: rec}
	}

	// Non-sold transaction updates behave like removals, address still
	// captured from the subject.
	if m := subjUpdateAnyRE.FindStringSubmatch(subject); m != nil && strings.TrimSpace(m[1]) != "" {
		return removalEvent(m[1], msg)
	}

	return nil
}

// ExtractFinalBid finds the anchored sale amount in a message body,
// e.g. "... was sold at auction today for $426,100." Returns nil when the
// sentence is absent or malformed.
func ExtractFinalBid(body string) *int64 {
	m := amountAnchorRE.FindStringSubmatch(body)
	if m == nil {
		return nil
	}
	cents, err := model.ParseCents(m[1])
	if err != nil {
		return nil
	}
	return cents
}

// buyerFromSuffix classifies the text after "- Sold" in the subject.
// "Sold To 3rd Party" is the common case; beneficiary / original-owner
// wordings map to the owner reclaiming the property.
func buyerFromSuffix(suffix string) model.BuyerType {
	s := strings.ToLower(suffix)
	if strings.Contains(s, "beneficiary") ||
		strings.Contains(s, "original owner") ||
		strings.Contains(s, "back to bank") {
		return model.BuyerOriginalOwner
	}
	return model.BuyerThirdParty
}

func removalEvent(rawAddress string, msg Message) *Event {
	address := collapseSpaces(rawAddress)
	return &Event{Removal: &model.ListingRecord{
		PropertyID: model.PropertyID(address),
		Address:    address,
		State:      model.ExtractState(address),
		Status:     model.ListingStatusRemoved,
		ScrapedAt:  msg.Received,
	}}
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
