package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAsksFromBidCents(t *testing.T) {
	tests := []struct {
		name       string
		yesBid     float64
		noBid      float64
		wantYesAsk float64
		wantNoAsk  float64
	}{
		{"mid_market", 45, 52, 0.48, 0.55},
		{"no_yes_bid", 0, 52, 0.48, 1.00},
		{"no_bids_at_all", 0, 0, 1.00, 1.00},
		{"tight_market", 49, 50, 0.50, 0.51},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yesAsk, noAsk := AsksFromBidCents(tt.yesBid, tt.noBid)
			assert.InDelta(t, tt.wantYesAsk, yesAsk, 1e-9)
			assert.InDelta(t, tt.wantNoAsk, noAsk, 1e-9)
		})
	}
}

// Derived asks always satisfy yes_ask + no_ask = (100-yes_bid-no_bid)/100 + 1,
// so the spread is never negative regardless of the input bids.
func TestAsksFromBidCents_SpreadIdentity(t *testing.T) {
	for yesBid := 0.0; yesBid <= 99; yesBid++ {
		for noBid := 0.0; noBid <= 99; noBid++ {
			yesAsk, noAsk := AsksFromBidCents(yesBid, noBid)
			want := (100-yesBid-noBid)/100.0 + 1
			assert.InDelta(t, want, yesAsk+noAsk, 1e-9)
			assert.GreaterOrEqual(t, yesAsk+noAsk+1e-9, want)
		}
	}
}

func TestBestBidCents(t *testing.T) {
	t.Run("last_element_is_best", func(t *testing.T) {
		ladder := [][]float64{{30, 500}, {40, 120}, {45, 50}}
		assert.Equal(t, 45.0, BestBidCents(ladder))
	})

	t.Run("empty_ladder", func(t *testing.T) {
		assert.Equal(t, 0.0, BestBidCents(nil))
		assert.Equal(t, 0.0, BestBidCents([][]float64{}))
	})

	t.Run("malformed_level", func(t *testing.T) {
		assert.Equal(t, 0.0, BestBidCents([][]float64{{}}))
	})
}

func TestBestAskBestBid(t *testing.T) {
	levels := []Level{
		{Price: "0.55", Size: "100"},
		{Price: "0.52", Size: "20"},
		{Price: "0.60", Size: "5"},
	}

	assert.InDelta(t, 0.52, BestAsk(levels), 1e-9)
	assert.InDelta(t, 0.60, BestBid(levels), 1e-9)

	t.Run("skips_unparseable_prices", func(t *testing.T) {
		bad := []Level{{Price: "not-a-price", Size: "1"}, {Price: "0.40", Size: "2"}}
		assert.InDelta(t, 0.40, BestAsk(bad), 1e-9)
		assert.InDelta(t, 0.40, BestBid(bad), 1e-9)
	})

	t.Run("empty_levels", func(t *testing.T) {
		assert.Equal(t, 0.0, BestAsk(nil))
		assert.Equal(t, 0.0, BestBid(nil))
	})
}

func TestBookComplete(t *testing.T) {
	assert.False(t, (*Book)(nil).Complete())
	assert.False(t, (&Book{YesAsk: 0.5}).Complete())
	assert.False(t, (&Book{NoAsk: 0.5}).Complete())
	assert.True(t, (&Book{YesAsk: 0.5, NoAsk: 0.52}).Complete())
}
