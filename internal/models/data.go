package models

import "time"

// Token 归一化后的代币记录
type Token struct {
	ID       string `json:"id"`
	Currency string `json:"currency"`
	Symbol   string `json:"symbol"`
	Issuer   string `json:"issuer"`
	Name     string `json:"name"`
	Icon     string `json:"icon,omitempty"`

	PriceUSD     float64 `json:"priceUSD"`
	PriceXRP     float64 `json:"priceXRP"`
	Volume24h    float64 `json:"volume24h"`
	Volume7d     float64 `json:"volume7d"`
	MarketCap    float64 `json:"marketCap"`
	Supply       float64 `json:"supply"`
	Holders      float64 `json:"holders"`
	Trustlines   float64 `json:"trustlines"`
	Exchanges24h float64 `json:"exchanges24h"`
	Exchanges7d  float64 `json:"exchanges7d"`
	Takers24h    float64 `json:"takers24h"`
	Takers7d     float64 `json:"takers7d"`
	DexOffers    float64 `json:"dexOffers"`

	Change1h  float64 `json:"change1h"`
	Change24h float64 `json:"change24h"`
	Change7d  float64 `json:"change7d"`

	// UI-only direction flags, recomputed on every update.
	PriceIncreased bool `json:"priceIncreased"`
	PriceDecreased bool `json:"priceDecreased"`
}

// TokenID builds the stable identifier for a (currency, issuer) pair.
func TokenID(currency, issuer string) string {
	return currency + "-" + issuer
}

// RawToken 元数据接口返回的原始记录
type RawToken struct {
	Currency string         `json:"currency"`
	Issuer   string         `json:"issuer"`
	Name     string         `json:"name,omitempty"`
	Meta     *RawTokenMeta  `json:"meta,omitempty"`
	Metrics  map[string]any `json:"metrics,omitempty"`
}

type RawTokenMeta struct {
	Token *struct {
		Icon string `json:"icon,omitempty"`
	} `json:"token,omitempty"`
}

// PricePatch carries the subset of market fields a realtime update knows about.
// Nil fields are left untouched on merge.
type PricePatch struct {
	Price     *float64 `json:"price,omitempty"`
	Volume24h *float64 `json:"volume_24h,omitempty"`
	Change24h *float64 `json:"change_24h,omitempty"`
}

// LedgerInfo 账本/共识事件中的网络字段
type LedgerInfo struct {
	LedgerIndex    int64   `json:"ledger_index,omitempty"`
	LedgerHash     string  `json:"ledger_hash,omitempty"`
	TxnCount       int64   `json:"txn_count,omitempty"`
	LoadFactor     float64 `json:"load_factor,omitempty"`
	ConsensusPhase string  `json:"consensus_phase,omitempty"`
	ValidatorCount int     `json:"validator_count,omitempty"`
	PeerCount      int     `json:"peer_count,omitempty"`
	Proposers      int     `json:"proposers,omitempty"`
	Validations    int     `json:"validations,omitempty"`
	RoundTime      float64 `json:"round_time,omitempty"`
	ReserveBase    float64 `json:"reserve_base,omitempty"`
	ReserveInc     float64 `json:"reserve_inc,omitempty"`
}

// ServerStatus 元数据服务器状态
type ServerStatus struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  int64  `json:"uptime"`
	Ledger  struct {
		Index     int64  `json:"index"`
		Hash      string `json:"hash"`
		CloseTime string `json:"closeTime"`
	} `json:"currentLedger"`
	Load struct {
		Transactions    float64 `json:"transactions"`
		LedgerCloseTime float64 `json:"ledgerCloseTime"`
	} `json:"load"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// RateSnapshot 参考汇率及其相对上一次成功拉取的变化
type RateSnapshot struct {
	Currency      string    `json:"currency"`
	Rate          float64   `json:"rate"`
	Previous      float64   `json:"previous,omitempty"`
	ChangePercent float64   `json:"changePercent"`
	Increased     bool      `json:"increased"`
	Decreased     bool      `json:"decreased"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
