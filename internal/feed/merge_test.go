package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/songzhibin97/xrplfeed/internal/models"
)

func f64(v float64) *float64 { return &v }

func TestApplyPatches(t *testing.T) {
	tokens := []models.Token{
		{ID: "SOLO-rSolo", Currency: "SOLO", PriceUSD: 0.5, PriceXRP: 1, Volume24h: 10, Change24h: 1},
		{ID: "CSC-rCsc", Currency: "CSC", PriceUSD: 0.01, Volume24h: 20, PriceIncreased: true},
	}

	next, changed := applyPatches(tokens, map[string]models.PricePatch{
		"SOLO":     {Price: f64(0.4)},
		"CSC-rCsc": {Change24h: f64(-3)},
		"NEW":      {Price: f64(9)},
	})

	assert.True(t, changed)
	assert.Len(t, next, 2)

	assert.Equal(t, 0.4, next[0].PriceUSD)
	assert.InDelta(t, 0.8, next[0].PriceXRP, 1e-9)
	assert.Equal(t, 10.0, next[0].Volume24h)
	assert.Equal(t, 1.0, next[0].Change24h)
	assert.True(t, next[0].PriceDecreased)
	assert.False(t, next[0].PriceIncreased)

	assert.Equal(t, 0.01, next[1].PriceUSD)
	assert.Equal(t, -3.0, next[1].Change24h)
	assert.False(t, next[1].PriceIncreased, "no price in patch clears the flag")

	assert.Equal(t, 0.5, tokens[0].PriceUSD, "input untouched")
}

func TestApplyPatches_NoMatch(t *testing.T) {
	tokens := []models.Token{{ID: "A-r", Currency: "A"}}

	next, changed := applyPatches(tokens, map[string]models.PricePatch{"B": {Price: f64(1)}})
	assert.False(t, changed)
	assert.Equal(t, tokens, next)

	next, changed = applyPatches(tokens, nil)
	assert.False(t, changed)
	assert.Equal(t, tokens, next)
}

func TestMarkDirections(t *testing.T) {
	prev := []models.Token{{ID: "a", PriceUSD: 1}, {ID: "b", PriceUSD: 1}, {ID: "c", PriceUSD: 1}}
	next := []models.Token{{ID: "a", PriceUSD: 2}, {ID: "b", PriceUSD: 0.5}, {ID: "c", PriceUSD: 1}, {ID: "d", PriceUSD: 3}}

	out := markDirections(prev, next)

	assert.True(t, out[0].PriceIncreased)
	assert.True(t, out[1].PriceDecreased)
	assert.False(t, out[2].PriceIncreased || out[2].PriceDecreased)
	assert.False(t, out[3].PriceIncreased || out[3].PriceDecreased)
}
