package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractState(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{"107 Vaughan Memorial Dr, Selma, AL 36701", "AL"},
		{"123 Main St, Dallas, TX 75201", "TX"},
		{"9 Oak Ave, Phoenix, AZ", "AZ"},
		{"500 W 5th St Austin TX 78701", "TX"},
		// "Dr" and street words must not read as state codes.
		{"12 Alabama Dr, Springfield", ""},
		{"no state here", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractState(tt.address), tt.address)
	}
}

func TestPropertyID(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{"107 Vaughan Memorial Dr, Selma, AL 36701", "107-vaughan-memorial-dr-selma-al-36701"},
		{"  123 Main St.  ", "123-main-st"},
		{"123 MAIN ST", "123-main-st"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PropertyID(tt.address), tt.address)
	}
}

func TestPropertyID_FormattingVariantsCollide(t *testing.T) {
	// The same property rendered by the marketplace and by the mailbox.
	a := PropertyID("123 Main St, Dallas, TX 75201")
	b := PropertyID("123 Main St,  Dallas,  TX  75201")
	assert.Equal(t, a, b)
}
