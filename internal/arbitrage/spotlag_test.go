package arbitrage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mselser95/prediction-arb/pkg/types"
)

func TestParseKalshiSubtitle(t *testing.T) {
	tests := []struct {
		subtitle string
		want     SpotThreshold
		ok       bool
	}{
		{"$101,000 or above", SpotThreshold{Direction: "above", Value: 101000}, true},
		{"101000 or above", SpotThreshold{Direction: "above", Value: 101000}, true},
		{"$3,499.99 or below", SpotThreshold{Direction: "below", Value: 3499.99}, true},
		{"$95,000 to $99,999.99", SpotThreshold{Direction: "bracket", Low: 95000, High: 99999.99}, true},
		{"95000 to 99999.99", SpotThreshold{Direction: "bracket", Low: 95000, High: 99999.99}, true},
		{"between here and there", SpotThreshold{}, false},
		{"", SpotThreshold{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.subtitle, func(t *testing.T) {
			got, ok := ParseKalshiSubtitle(tt.subtitle)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSubtitleRoundTrip(t *testing.T) {
	thresholds := []SpotThreshold{
		{Direction: "above", Value: 101000},
		{Direction: "below", Value: 3499.99},
		{Direction: "bracket", Low: 95000, High: 99999.99},
	}

	for _, want := range thresholds {
		t.Run(want.String(), func(t *testing.T) {
			got, ok := ParseKalshiSubtitle(want.String())
			require.True(t, ok)
			assert.Equal(t, want, got)
		})
	}
}

func TestExtractThreshold(t *testing.T) {
	tests := []struct {
		title string
		want  float64
		ok    bool
	}{
		{"Will Bitcoin reach $150,000 by December 31?", 150000, true},
		{"Will BTC dip to $90,000 or hit $120,000 first?", 120000, true},
		{"Ethereum above $3,500.50 this week?", 3500.50, true},
		{"Will Bitcoin hit a new all time high?", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got, ok := ExtractThreshold(tt.title)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestTitleDirection(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Will Bitcoin reach $150,000?", "above"},
		{"Will ETH exceed $5,000 this year?", "above"},
		{"Bitcoin to hit $1m?", "above"},
		{"Will Solana drop below $100?", "below"},
		{"ETH under $2,000 by March?", "below"},
		{"Bitcoin price on Friday?", "above"},
		// Upward words win when both appear.
		{"Will BTC fall back after reaching $120,000?", "above"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, TitleDirection(tt.title))
		})
	}
}

func TestCoinFromTicker(t *testing.T) {
	tests := []struct {
		ticker string
		coin   string
		ok     bool
	}{
		{"KXBTCD-25AUG25-T101000", "BTC", true},
		{"KXETH-25DEC31-T4000", "ETH", true},
		{"KXSOLMAX-25SEP01", "SOL", true},
		{"KXINX-25AUG25", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.ticker, func(t *testing.T) {
			coin, ok := CoinFromTicker(tt.ticker)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.coin, coin)
		})
	}
}

func TestIdentifyCoin(t *testing.T) {
	tests := []struct {
		title string
		coin  string
		ok    bool
	}{
		{"Will Bitcoin reach $150,000?", "BTC", true},
		{"BTC above $100k by Friday?", "BTC", true},
		{"Will Ethereum flip Bitcoin?", "BTC", true}, // BTC keywords checked first
		{"ETH above $4,000?", "ETH", true},
		{"Will Solana hit $500?", "SOL", true},
		{"Will solar power surpass coal?", "", false},
		{"Who wins the election?", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			coin, ok := IdentifyCoin(tt.title)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.coin, coin)
		})
	}
}

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{950, "950"},
		{1000, "1,000"},
		{101234.56, "101,235"},
		{1000000, "1,000,000"},
		{99999.4, "99,999"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatUSD(tt.in), "formatUSD(%v)", tt.in)
	}
}

func cryptoKalshiMarket(subtitle string) types.Market {
	return types.Market{
		Venue:    types.VenueKalshi,
		ID:       "KXBTCD-25AUG25-T100000",
		Title:    "Bitcoin price today at 5pm EDT?",
		Subtitle: subtitle,
	}
}

func TestEvaluateSpotLagKalshi_Above(t *testing.T) {
	e := newTestEvaluator(t, 1.0)
	m := cryptoKalshiMarket("$100,000 or above")

	t.Run("spot over strike with cheap yes", func(t *testing.T) {
		opp := e.EvaluateSpotLagKalshi(m, "BTC", 101000, 0.08)
		require.NotNil(t, opp)
		assert.Equal(t, TypeSpotLag, opp.Type)
		assert.Equal(t, "BUY YES (BTC $101,000 vs $100,000)", opp.Strategy)
		assert.InDelta(t, 92.0, opp.ProfitCents, 1e-9)
		assert.InDelta(t, 0.08, opp.KalshiPrice(), 1e-9)
		assert.Equal(t, "Bitcoin price today at 5pm EDT? - $100,000 or above", opp.MarketPair)
		assert.Equal(t, "KXBTCD-25AUG25-T100000", opp.KalshiTicker)
		assert.Equal(t, "https://kalshi.com/markets/KXBTCD-25AUG25-T100000", opp.URL)
	})

	t.Run("spot at strike counts as over", func(t *testing.T) {
		opp := e.EvaluateSpotLagKalshi(m, "BTC", 100000, 0.10)
		require.NotNil(t, opp)
		assert.Equal(t, "BUY YES (BTC $100,000 vs $100,000)", opp.Strategy)
	})

	t.Run("spot under strike with rich yes", func(t *testing.T) {
		opp := e.EvaluateSpotLagKalshi(m, "BTC", 99000, 0.92)
		require.NotNil(t, opp)
		assert.Equal(t, "BUY NO (BTC $99,000 vs $100,000)", opp.Strategy)
		assert.InDelta(t, 92.0, opp.ProfitCents, 1e-9)
	})

	t.Run("dormant when spot is far from strike", func(t *testing.T) {
		assert.Nil(t, e.EvaluateSpotLagKalshi(m, "BTC", 90000, 0.05))
		assert.Nil(t, e.EvaluateSpotLagKalshi(m, "BTC", 110000, 0.05))
	})

	t.Run("dormant when yes agrees with spot", func(t *testing.T) {
		assert.Nil(t, e.EvaluateSpotLagKalshi(m, "BTC", 101000, 0.50))
		assert.Nil(t, e.EvaluateSpotLagKalshi(m, "BTC", 101000, 0.95))
	})

	t.Run("no spot or quote", func(t *testing.T) {
		assert.Nil(t, e.EvaluateSpotLagKalshi(m, "BTC", 0, 0.08))
		assert.Nil(t, e.EvaluateSpotLagKalshi(m, "BTC", 101000, 0))
	})
}

func TestEvaluateSpotLagKalshi_Below(t *testing.T) {
	e := newTestEvaluator(t, 1.0)
	m := cryptoKalshiMarket("$100,000 or below")

	opp := e.EvaluateSpotLagKalshi(m, "BTC", 99000, 0.10)
	require.NotNil(t, opp)
	assert.Equal(t, "BUY YES (BTC $99,000 vs $100,000)", opp.Strategy)

	opp = e.EvaluateSpotLagKalshi(m, "BTC", 100000, 0.10)
	require.NotNil(t, opp)

	opp = e.EvaluateSpotLagKalshi(m, "BTC", 101000, 0.90)
	require.NotNil(t, opp)
	assert.Equal(t, "BUY NO (BTC $101,000 vs $100,000)", opp.Strategy)
	assert.InDelta(t, 90.0, opp.ProfitCents, 1e-9)
}

func TestEvaluateSpotLagKalshi_Bracket(t *testing.T) {
	e := newTestEvaluator(t, 1.0)
	m := cryptoKalshiMarket("$95,000 to $99,999.99")

	t.Run("inside with cheap yes", func(t *testing.T) {
		opp := e.EvaluateSpotLagKalshi(m, "BTC", 97000, 0.05)
		require.NotNil(t, opp)
		// The low edge is the reported strike.
		assert.Equal(t, "BUY YES (BTC $97,000 vs $95,000)", opp.Strategy)
	})

	t.Run("outside with rich yes", func(t *testing.T) {
		opp := e.EvaluateSpotLagKalshi(m, "BTC", 94000, 0.90)
		require.NotNil(t, opp)
		assert.Equal(t, "BUY NO (BTC $94,000 vs $95,000)", opp.Strategy)
	})

	t.Run("near only the high edge still arms", func(t *testing.T) {
		opp := e.EvaluateSpotLagKalshi(m, "BTC", 99800, 0.05)
		require.NotNil(t, opp)
	})

	t.Run("far from both edges", func(t *testing.T) {
		assert.Nil(t, e.EvaluateSpotLagKalshi(m, "BTC", 80000, 0.90))
	})
}

func TestEvaluateSpotLagKalshi_UnparseableSubtitle(t *testing.T) {
	e := newTestEvaluator(t, 1.0)
	m := cryptoKalshiMarket("whatever happens first")
	assert.Nil(t, e.EvaluateSpotLagKalshi(m, "BTC", 100000, 0.05))
}

func TestEvaluateSpotLagPoly(t *testing.T) {
	e := newTestEvaluator(t, 1.0)
	m := types.Market{
		Venue: types.VenuePolymarket,
		ID:    "0xbtc100k",
		Title: "Will Bitcoin reach $100,000 by Friday?",
		Slug:  "bitcoin-100k-friday",
	}

	t.Run("spot over strike with cheap yes", func(t *testing.T) {
		opp := e.EvaluateSpotLagPoly(m, "BTC", 101000, 0.08)
		require.NotNil(t, opp)
		assert.Equal(t, TypeSpotLag, opp.Type)
		assert.Equal(t, "BUY YES (BTC $101,000 vs $100,000)", opp.Strategy)
		assert.InDelta(t, 92.0, opp.ProfitCents, 1e-9)
		assert.InDelta(t, 0.08, opp.PolyPrice(), 1e-9)
		assert.Equal(t, "0xbtc100k", opp.PolyMarketID)
		assert.Equal(t, "https://polymarket.com/event/bitcoin-100k-friday", opp.URL)
	})

	t.Run("spot exactly at strike stays quiet", func(t *testing.T) {
		// A reach market resolves on touch, so equality is not a lag.
		assert.Nil(t, e.EvaluateSpotLagPoly(m, "BTC", 100000, 0.08))
		assert.Nil(t, e.EvaluateSpotLagPoly(m, "BTC", 100000, 0.92))
	})

	t.Run("spot under strike with rich yes", func(t *testing.T) {
		opp := e.EvaluateSpotLagPoly(m, "BTC", 99000, 0.92)
		require.NotNil(t, opp)
		assert.Equal(t, "BUY NO (BTC $99,000 vs $100,000)", opp.Strategy)
		assert.InDelta(t, 92.0, opp.ProfitCents, 1e-9)
	})

	t.Run("dormant outside proximity band", func(t *testing.T) {
		assert.Nil(t, e.EvaluateSpotLagPoly(m, "BTC", 90000, 0.92))
	})
}

func TestEvaluateSpotLagPoly_Below(t *testing.T) {
	e := newTestEvaluator(t, 1.0)
	m := types.Market{
		Venue: types.VenuePolymarket,
		ID:    "0xeth3k",
		Title: "Will Ethereum drop below $3,000 in August?",
		Slug:  "eth-below-3000-august",
	}

	opp := e.EvaluateSpotLagPoly(m, "ETH", 2950, 0.10)
	require.NotNil(t, opp)
	assert.Equal(t, "BUY YES (ETH $2,950 vs $3,000)", opp.Strategy)

	opp = e.EvaluateSpotLagPoly(m, "ETH", 3050, 0.95)
	require.NotNil(t, opp)
	assert.Equal(t, "BUY NO (ETH $3,050 vs $3,000)", opp.Strategy)
	assert.InDelta(t, 95.0, opp.ProfitCents, 1e-9)
}

func TestEvaluateSpotLagPoly_NoThreshold(t *testing.T) {
	e := newTestEvaluator(t, 1.0)
	m := types.Market{
		Venue: types.VenuePolymarket,
		ID:    "0xnodollar",
		Title: "Will Bitcoin hit a new all time high?",
	}
	assert.Nil(t, e.EvaluateSpotLagPoly(m, "BTC", 100000, 0.05))
}

func TestNearThreshold(t *testing.T) {
	assert.True(t, nearThreshold(100000, 100000))
	assert.True(t, nearThreshold(105000, 100000))
	assert.True(t, nearThreshold(95000, 100000))
	assert.False(t, nearThreshold(94999, 100000))
	assert.False(t, nearThreshold(106000, 100000))
	assert.False(t, nearThreshold(100, 0))
}
