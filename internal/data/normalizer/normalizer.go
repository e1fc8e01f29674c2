package normalizer

import (
	"encoding/hex"
	"encoding/json"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/songzhibin97/xrplfeed/internal/models"
)

// hexCurrencyLen is the length of a non-standard XRPL currency code. Some
// upstream records pad the code further, so longer even-length hex is accepted.
const hexCurrencyLen = 40

// ParseMetric extracts a number from a loosely typed metric value.
// Accepted shapes: a bare number, a numeric string, or an object with a
// "value" member holding either of those. Anything else yields 0.
func ParseMetric(v any) float64 {
	switch m := v.(type) {
	case nil:
		return 0
	case map[string]any:
		inner, ok := m["value"]
		if !ok {
			return 0
		}
		if _, nested := inner.(map[string]any); nested {
			return 0
		}
		return ParseMetric(inner)
	case float64:
		return finite(m)
	case float32:
		return finite(float64(m))
	case int:
		return float64(m)
	case int64:
		return float64(m)
	case json.Number:
		return parseString(m.String())
	case string:
		return parseString(m)
	}
	return 0
}

func parseString(s string) float64 {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return finite(f)
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// DecodeCurrency turns a hex-encoded currency code (40 characters or more)
// into its text form. The raw code is returned unchanged unless decoding
// yields a non-empty, valid UTF-8, printable string once trailing NULs are
// stripped.
func DecodeCurrency(code string) string {
	if len(code) < hexCurrencyLen || len(code)%2 != 0 {
		return code
	}
	raw, err := hex.DecodeString(code)
	if err != nil {
		return code
	}
	trimmed := strings.TrimRight(string(raw), "\x00")
	if trimmed == "" || !utf8.ValidString(trimmed) {
		return code
	}
	for _, r := range trimmed {
		if !unicode.IsPrint(r) {
			return code
		}
	}
	return trimmed
}

// Normalize converts a raw record into a Token. rate is the fiat value of one
// XRP; when it is not positive, priceXRP falls back to the raw price_xrp metric.
func Normalize(raw models.RawToken, rate float64) models.Token {
	metrics := raw.Metrics
	if metrics == nil {
		metrics = map[string]any{}
	}

	currency := DecodeCurrency(raw.Currency)
	name := raw.Name
	if name == "" || name == raw.Currency || name == currency {
		name = currency
	}

	priceUSD := market(metrics, "price")
	priceXRP := market(metrics, "price_xrp")
	if rate > 0 {
		priceXRP = priceUSD / rate
	}

	var icon string
	if raw.Meta != nil && raw.Meta.Token != nil {
		icon = raw.Meta.Token.Icon
	}

	return models.Token{
		ID:           models.TokenID(currency, raw.Issuer),
		Currency:     currency,
		Symbol:       currency,
		Issuer:       raw.Issuer,
		Name:         name,
		Icon:         icon,
		PriceUSD:     priceUSD,
		PriceXRP:     priceXRP,
		Volume24h:    market(metrics, "volume_24h"),
		Volume7d:     market(metrics, "volume_7d"),
		MarketCap:    market(metrics, "marketcap"),
		Supply:       market(metrics, "supply"),
		Holders:      market(metrics, "holders"),
		Trustlines:   market(metrics, "trustlines"),
		Exchanges24h: market(metrics, "exchanges_24h"),
		Exchanges7d:  market(metrics, "exchanges_7d"),
		Takers24h:    market(metrics, "takers_24h"),
		Takers7d:     market(metrics, "takers_7d"),
		DexOffers:    market(metrics, "dex_offers"),
		Change1h:     changePercent(metrics, "1h"),
		Change24h:    changePercent(metrics, "24h"),
		Change7d:     changePercent(metrics, "7d"),
	}
}

// market reads a market quantity. These are never negative; only the
// change percentages carry a sign.
func market(metrics map[string]any, key string) float64 {
	return math.Max(ParseMetric(metrics[key]), 0)
}

// changePercent reads metrics.changes[window].price.percent.
func changePercent(metrics map[string]any, window string) float64 {
	changes, ok := metrics["changes"].(map[string]any)
	if !ok {
		return 0
	}
	w, ok := changes[window].(map[string]any)
	if !ok {
		return 0
	}
	price, ok := w["price"].(map[string]any)
	if !ok {
		return 0
	}
	return ParseMetric(price["percent"])
}
