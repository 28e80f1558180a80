package mailparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsyte-agents/auction-sync/internal/model"
)

var received = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func TestParseMessage_SoldThirdParty(t *testing.T) {
	event := ParseMessage(Message{
		ID:       "m1",
		Subject:  "Transaction Update: 107 Vaughan Memorial Dr, Selma, AL 36701 - Sold To 3rd Party.",
		Body:     "The property at 107 Vaughan Memorial Dr was sold at auction today for $426,100.",
		Received: received,
	})

	require.NotNil(t, event)
	require.NotNil(t, event.Outcome)
	assert.Nil(t, event.Removal)

	o := event.Outcome
	assert.Equal(t, "107-vaughan-memorial-dr-selma-al-36701", o.PropertyID)
	assert.Equal(t, "107 Vaughan Memorial Dr, Selma, AL 36701", o.Address)
	assert.Equal(t, model.BuyerThirdParty, o.SoldTo)
	require.NotNil(t, o.FinalBid)
	assert.Equal(t, int64(426_100_00), *o.FinalBid)
	assert.Equal(t, received, o.ObservedAt)
	assert.Equal(t, "m1", o.MessageID)
}

func TestParseMessage_SoldToBeneficiary(t *testing.T) {
	event := ParseMessage(Message{
		Subject:  "Transaction Update: 12 Pine Rd, Mobile, AL 36602 - Sold To Beneficiary.",
		Body:     "The property was sold at auction today for $99,000.",
		Received: received,
	})

	require.NotNil(t, event)
	require.NotNil(t, event.Outcome)
	assert.Equal(t, model.BuyerOriginalOwner, event.Outcome.SoldTo)
	// Owner-reclaimed sales never carry a final bid, even when the body
	// mentions an amount.
	assert.Nil(t, event.Outcome.FinalBid)
}

func TestParseMessage_SoldBodyWithoutAmount(t *testing.T) {
	event := ParseMessage(Message{
		Subject:  "Transaction Update: 9 Oak Ave, Phoenix, AZ 85001 - Sold To 3rd Party.",
		Body:     "Congratulations, the property has a new owner.",
		Received: received,
	})

	require.NotNil(t, event)
	require.NotNil(t, event.Outcome)
	assert.Equal(t, model.BuyerThirdParty, event.Outcome.SoldTo)
	assert.Nil(t, event.Outcome.FinalBid)
}

func TestParseMessage_PropertyRemoved(t *testing.T) {
	event := ParseMessage(Message{
		Subject:  "Property Removed: 816 Bahia Lane, Bessemer, AL 35023 has been removed from your saved list.",
		Received: received,
	})

	require.NotNil(t, event)
	require.NotNil(t, event.Removal)
	assert.Nil(t, event.Outcome)

	rm := event.Removal
	assert.Equal(t, "816-bahia-lane-bessemer-al-35023", rm.PropertyID)
	assert.Equal(t, "AL", rm.State)
	assert.Equal(t, model.ListingStatusRemoved, rm.Status)
	assert.Equal(t, received, rm.ScrapedAt)
}

func TestParseMessage_NonSoldUpdateIsRemoval(t *testing.T) {
	event := ParseMessage(Message{
		Subject:  "Transaction Update: 45 Elm St, Tampa, FL 33601 - Auction Cancelled.",
		Received: received,
	})

	require.NotNil(t, event)
	require.NotNil(t, event.Removal)
	assert.Nil(t, event.Outcome)
	assert.Equal(t, model.ListingStatusRemoved, event.Removal.Status)
	assert.Equal(t, "FL", event.Removal.State)
}

func TestParseMessage_Unrecognized(t *testing.T) {
	for _, subject := range []string{
		"Weekly digest",
		"Re: Transaction question",
		"",
	} {
		assert.Nil(t, ParseMessage(Message{Subject: subject, Received: received}), subject)
	}
}

func TestParseMessage_CollapsesAddressWhitespace(t *testing.T) {
	event := ParseMessage(Message{
		Subject:  "Transaction Update:   123  Main   St,  Dallas, TX 75201  - Sold To 3rd Party.",
		Received: received,
	})

	require.NotNil(t, event)
	require.NotNil(t, event.Outcome)
	assert.Equal(t, "123 Main St, Dallas, TX 75201", event.Outcome.Address)
	assert.Equal(t, "123-main-st-dallas-tx-75201", event.Outcome.PropertyID)
}

func TestExtractFinalBid(t *testing.T) {
	tests := []struct {
		body string
		want *int64
	}{
		{"was sold at auction today for $426,100.", model.Cents(426_100_00)},
		{"was sold at auction today for USD 1,250,000.50", model.Cents(1_250_000_50)},
		{"WAS SOLD AT AUCTION TODAY FOR $75,000", model.Cents(75_000_00)},
		{"sold yesterday for $100", nil},
		{"", nil},
	}
	for _, tt := range tests {
		got := ExtractFinalBid(tt.body)
		if tt.want == nil {
			assert.Nil(t, got, tt.body)
		} else {
			require.NotNil(t, got, tt.body)
			assert.Equal(t, *tt.want, *got, tt.body)
		}
	}
}
