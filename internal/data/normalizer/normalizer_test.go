package normalizer

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songzhibin97/xrplfeed/internal/models"
)

func TestParseMetric(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  float64
	}{
		{name: "nil", input: nil, want: 0},
		{name: "bare number", input: 12.5, want: 12.5},
		{name: "int", input: 7, want: 7},
		{name: "numeric string", input: "0.25", want: 0.25},
		{name: "padded string", input: " 42 ", want: 42},
		{name: "exponent string", input: "1e3", want: 1000},
		{name: "json number", input: json.Number("3.75"), want: 3.75},
		{name: "wrapper with string", input: map[string]any{"value": "0.5"}, want: 0.5},
		{name: "wrapper with number", input: map[string]any{"value": 1000.0}, want: 1000},
		{name: "wrapper without value", input: map[string]any{"other": 1.0}, want: 0},
		{name: "wrapper with nil value", input: map[string]any{"value": nil}, want: 0},
		{name: "nested wrapper", input: map[string]any{"value": map[string]any{"value": 1.0}}, want: 0},
		{name: "garbage string", input: "abc", want: 0},
		{name: "empty string", input: "", want: 0},
		{name: "bool", input: true, want: 0},
		{name: "slice", input: []any{1.0}, want: 0},
		{name: "NaN", input: math.NaN(), want: 0},
		{name: "Inf", input: math.Inf(1), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseMetric(tt.input)
			assert.False(t, math.IsNaN(got))
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestDecodeCurrency(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{name: "standard code untouched", code: "USD", want: "USD"},
		{name: "40 hex decodes", code: "534F4C4F00000000000000000000000000000000", want: "SOLO"},
		{name: "lowercase hex decodes", code: "534f4c4f00000000000000000000000000000000", want: "SOLO"},
		{name: "padded xrp code", code: "58525000000000000000000000000000000000000000", want: "XRP"},
		{name: "all zero stays raw", code: "0000000000000000000000000000000000000000", want: "0000000000000000000000000000000000000000"},
		{name: "non printable stays raw", code: "0102030000000000000000000000000000000000", want: "0102030000000000000000000000000000000000"},
		{name: "invalid utf8 stays raw", code: "FFFE000000000000000000000000000000000000", want: "FFFE000000000000000000000000000000000000"},
		{name: "not hex stays raw", code: "ZZ4F4C4F00000000000000000000000000000000", want: "ZZ4F4C4F00000000000000000000000000000000"},
		{name: "short hex stays raw", code: "534F4C4F", want: "534F4C4F"},
		{name: "odd length stays raw", code: "534F4C4F000000000000000000000000000000000", want: "534F4C4F000000000000000000000000000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeCurrency(tt.code))
		})
	}
}

func TestNormalize_EndToEnd(t *testing.T) {
	var raw models.RawToken
	payload := `{
		"currency": "58525000000000000000000000000000000000000000",
		"issuer": "rISSUER",
		"metrics": {"price": {"value": "0.5"}, "volume_24h": {"value": 1000}}
	}`
	require.NoError(t, json.Unmarshal([]byte(payload), &raw))

	token := Normalize(raw, 0.60)

	assert.Equal(t, "XRP", token.Currency)
	assert.Equal(t, "XRP", token.Symbol)
	assert.Equal(t, "XRP", token.Name)
	assert.Equal(t, "XRP-rISSUER", token.ID)
	assert.Equal(t, 0.5, token.PriceUSD)
	assert.InDelta(t, 0.8333, token.PriceXRP, 1e-4)
	assert.Equal(t, 1000.0, token.Volume24h)
	assert.Zero(t, token.MarketCap)
	assert.Zero(t, token.Change24h)
}

func TestNormalize_Fields(t *testing.T) {
	raw := models.RawToken{
		Currency: "SOLO",
		Issuer:   "rSolo",
		Name:     "Sologenic",
		Meta: &models.RawTokenMeta{Token: &struct {
			Icon string `json:"icon,omitempty"`
		}{Icon: "https://icons/solo.png"}},
		Metrics: map[string]any{
			"price":         "2",
			"price_xrp":     "9",
			"volume_7d":     map[string]any{"value": "700"},
			"marketcap":     1e6,
			"supply":        "400000000",
			"holders":       1200.0,
			"trustlines":    "3000",
			"exchanges_24h": 55.0,
			"exchanges_7d":  310.0,
			"takers_24h":    12.0,
			"takers_7d":     80.0,
			"dex_offers":    "19",
			"changes": map[string]any{
				"1h":  map[string]any{"price": map[string]any{"percent": -0.5}},
				"24h": map[string]any{"price": map[string]any{"percent": 4.25}},
				"7d":  map[string]any{"price": map[string]any{"percent": "-12"}},
			},
		},
	}

	token := Normalize(raw, 0)

	assert.Equal(t, "Sologenic", token.Name)
	assert.Equal(t, "https://icons/solo.png", token.Icon)
	assert.Equal(t, 2.0, token.PriceUSD)
	assert.Equal(t, 9.0, token.PriceXRP, "non-positive rate falls back to raw price_xrp")
	assert.Equal(t, 700.0, token.Volume7d)
	assert.Equal(t, 1e6, token.MarketCap)
	assert.Equal(t, 4e8, token.Supply)
	assert.Equal(t, 1200.0, token.Holders)
	assert.Equal(t, 3000.0, token.Trustlines)
	assert.Equal(t, 55.0, token.Exchanges24h)
	assert.Equal(t, 310.0, token.Exchanges7d)
	assert.Equal(t, 12.0, token.Takers24h)
	assert.Equal(t, 80.0, token.Takers7d)
	assert.Equal(t, 19.0, token.DexOffers)
	assert.Equal(t, -0.5, token.Change1h)
	assert.Equal(t, 4.25, token.Change24h)
	assert.Equal(t, -12.0, token.Change7d)
}

func TestNormalize_NameFallback(t *testing.T) {
	hexCode := "534F4C4F00000000000000000000000000000000"

	tests := []struct {
		name    string
		rawName string
		want    string
	}{
		{name: "missing name", rawName: "", want: "SOLO"},
		{name: "name equals raw code", rawName: hexCode, want: "SOLO"},
		{name: "name equals decoded code", rawName: "SOLO", want: "SOLO"},
		{name: "explicit name kept", rawName: "Sologenic", want: "Sologenic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := Normalize(models.RawToken{Currency: hexCode, Issuer: "r1", Name: tt.rawName}, 1)
			assert.Equal(t, tt.want, token.Name)
		})
	}
}

func TestNormalize_StableID(t *testing.T) {
	a := Normalize(models.RawToken{
		Currency: "534F4C4F00000000000000000000000000000000",
		Issuer:   "rSolo",
		Metrics:  map[string]any{"price": 1.0},
	}, 0.5)
	b := Normalize(models.RawToken{
		Currency: "534F4C4F00000000000000000000000000000000",
		Issuer:   "rSolo",
		Metrics:  map[string]any{"price": "3", "volume_24h": 99.0},
	}, 0.7)

	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "SOLO-rSolo", a.ID)
}

func TestNormalize_NilMetrics(t *testing.T) {
	token := Normalize(models.RawToken{Currency: "USD", Issuer: "rGate"}, 0.6)

	assert.Equal(t, "USD-rGate", token.ID)
	assert.Zero(t, token.PriceUSD)
	assert.Zero(t, token.PriceXRP)
	assert.False(t, math.IsNaN(token.PriceXRP))
}

func TestNormalize_ClampsNegativeMarketFields(t *testing.T) {
	raw := models.RawToken{
		Currency: "USD",
		Issuer:   "rGate",
		Metrics: map[string]any{
			"price":      "-1.5",
			"price_xrp":  -2.0,
			"volume_24h": map[string]any{"value": "-100"},
			"marketcap":  -5.0,
			"holders":    "-3",
			"dex_offers": -7.0,
			"changes": map[string]any{
				"24h": map[string]any{"price": map[string]any{"percent": -8.5}},
			},
		},
	}

	withRate := Normalize(raw, 0.5)
	assert.Zero(t, withRate.PriceUSD)
	assert.Zero(t, withRate.PriceXRP)
	assert.Zero(t, withRate.Volume24h)
	assert.Zero(t, withRate.MarketCap)
	assert.Zero(t, withRate.Holders)
	assert.Zero(t, withRate.DexOffers)
	assert.Equal(t, -8.5, withRate.Change24h, "change percentages keep their sign")

	withoutRate := Normalize(raw, 0)
	assert.Zero(t, withoutRate.PriceXRP)
}
