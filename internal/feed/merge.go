package feed

import "github.com/songzhibin97/xrplfeed/internal/models"

// markDirections sets the direction flags of next against the prices in prev.
// Tokens new to the snapshot get no direction.
func markDirections(prev, next []models.Token) []models.Token {
	before := make(map[string]float64, len(prev))
	for _, t := range prev {
		before[t.ID] = t.PriceUSD
	}
	for i := range next {
		old, ok := before[next[i].ID]
		next[i].PriceIncreased = ok && next[i].PriceUSD > old
		next[i].PriceDecreased = ok && next[i].PriceUSD < old
	}
	return next
}

// applyPatches returns a patched copy of tokens. Patches are keyed by token
// id or, failing that, currency code. The input slice is never modified and
// the result has the same membership.
func applyPatches(tokens []models.Token, patches map[string]models.PricePatch) ([]models.Token, bool) {
	if len(patches) == 0 || len(tokens) == 0 {
		return tokens, false
	}

	var next []models.Token
	for i, tok := range tokens {
		p, ok := patches[tok.ID]
		if !ok {
			p, ok = patches[tok.Currency]
		}
		if !ok {
			continue
		}
		if next == nil {
			next = make([]models.Token, len(tokens))
			copy(next, tokens)
		}

		t := &next[i]
		if p.Price != nil {
			prev := t.PriceUSD
			t.PriceUSD = *p.Price
			if prev > 0 {
				// priceXRP shares the reference rate with priceUSD
				t.PriceXRP = t.PriceXRP * (*p.Price / prev)
			}
			t.PriceIncreased = *p.Price > prev
			t.PriceDecreased = *p.Price < prev
		} else {
			t.PriceIncreased = false
			t.PriceDecreased = false
		}
		if p.Volume24h != nil {
			t.Volume24h = *p.Volume24h
		}
		if p.Change24h != nil {
			t.Change24h = *p.Change24h
		}
	}

	if next == nil {
		return tokens, false
	}
	return next, true
}
