package netstats

import (
	"sync"
	"time"

	"github.com/songzhibin97/xrplfeed/internal/realtime"
)

// MaxHistoryPoints bounds every history series.
const MaxHistoryPoints = 60

type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

type ConsensusRound struct {
	Phase       string  `json:"phase"`
	Proposers   int     `json:"proposers"`
	Validations int     `json:"validations"`
	RoundTime   float64 `json:"roundTime"`
}

// Snapshot 网络指标快照
type Snapshot struct {
	TPS            float64        `json:"tps"`
	TxnCount       int64          `json:"txnCount"`
	LedgerIndex    int64          `json:"ledgerIndex"`
	LedgerHash     string         `json:"ledgerHash"`
	LastLedgerTime time.Time      `json:"lastLedgerTime"`
	ConsensusPhase string         `json:"consensusPhase"`
	ValidatorCount int            `json:"validatorCount"`
	PeerCount      int            `json:"peerCount"`
	NetworkLoad    float64        `json:"networkLoad"`
	ValidationTime float64        `json:"validationTime"`
	ReserveBase    float64        `json:"reserveBase"`
	ReserveInc     float64        `json:"reserveInc"`
	Round          ConsensusRound `json:"consensusRound"`

	TPSHistory       []Point `json:"tpsHistory"`
	LedgerHistory    []Point `json:"ledgerHistory"`
	LoadHistory      []Point `json:"loadHistory"`
	ConsensusHistory []Point `json:"consensusHistory"`
}

// Tracker folds realtime events into running network statistics.
type Tracker struct {
	mu  sync.RWMutex
	s   Snapshot
	now func() time.Time
}

func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		now: now,
		s: Snapshot{
			LastLedgerTime: now(),
			ConsensusPhase: "unknown",
			Round:          ConsensusRound{Phase: "unknown"},
		},
	}
}

// Observe applies one event. Absent fields keep their previous values.
func (t *Tracker) Observe(e realtime.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := e.ReceivedAt
	if now.IsZero() {
		now = t.now()
	}
	l := e.Ledger
	s := &t.s

	elapsed := now.Sub(s.LastLedgerTime).Seconds()
	if e.Type == realtime.EventLedgerClosed {
		if l.TxnCount > 0 && elapsed > 0 {
			s.TPS = float64(l.TxnCount) / elapsed
		}
		s.ValidationTime = elapsed
		s.LastLedgerTime = now
	}

	if l.TxnCount > 0 {
		s.TxnCount = l.TxnCount
	}
	if l.LedgerIndex > 0 {
		s.LedgerIndex = l.LedgerIndex
	}
	if l.LedgerHash != "" {
		s.LedgerHash = l.LedgerHash
	}
	if l.LoadFactor > 0 {
		s.NetworkLoad = l.LoadFactor / 256
	}
	if l.ConsensusPhase != "" {
		s.ConsensusPhase = l.ConsensusPhase
		s.Round.Phase = l.ConsensusPhase
	}
	if l.ValidatorCount > 0 {
		s.ValidatorCount = l.ValidatorCount
	}
	if l.PeerCount > 0 {
		s.PeerCount = l.PeerCount
	}
	if l.Proposers > 0 {
		s.Round.Proposers = l.Proposers
	}
	if l.Validations > 0 {
		s.Round.Validations = l.Validations
	}
	if l.RoundTime > 0 {
		s.Round.RoundTime = l.RoundTime
	}
	if l.ReserveBase > 0 {
		s.ReserveBase = l.ReserveBase
	}
	if l.ReserveInc > 0 {
		s.ReserveInc = l.ReserveInc
	}

	if e.Type == realtime.EventLedgerClosed {
		s.TPSHistory = appendPoint(s.TPSHistory, now, s.TPS)
		s.LedgerHistory = appendPoint(s.LedgerHistory, now, float64(s.LedgerIndex))
		s.LoadHistory = appendPoint(s.LoadHistory, now, s.NetworkLoad*100)
		s.ConsensusHistory = appendPoint(s.ConsensusHistory, now, elapsed)
	}
}

// Snapshot returns a copy that is safe to hand to other goroutines.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := t.s
	out.TPSHistory = append([]Point(nil), t.s.TPSHistory...)
	out.LedgerHistory = append([]Point(nil), t.s.LedgerHistory...)
	out.LoadHistory = append([]Point(nil), t.s.LoadHistory...)
	out.ConsensusHistory = append([]Point(nil), t.s.ConsensusHistory...)
	return out
}

func appendPoint(history []Point, at time.Time, v float64) []Point {
	history = append(history, Point{Time: at, Value: v})
	if len(history) > MaxHistoryPoints {
		history = history[len(history)-MaxHistoryPoints:]
	}
	return history
}
