package netstats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songzhibin97/xrplfeed/internal/models"
	"github.com/songzhibin97/xrplfeed/internal/realtime"
)

func TestTracker_LedgerClosed(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	tracker := NewTracker(func() time.Time { return start })

	tracker.Observe(realtime.Event{
		Type:       realtime.EventLedgerClosed,
		ReceivedAt: start.Add(4 * time.Second),
		Ledger: models.LedgerInfo{
			LedgerIndex: 100,
			LedgerHash:  "H1",
			TxnCount:    80,
			LoadFactor:  512,
		},
	})

	s := tracker.Snapshot()
	assert.Equal(t, 20.0, s.TPS)
	assert.Equal(t, int64(100), s.LedgerIndex)
	assert.Equal(t, "H1", s.LedgerHash)
	assert.Equal(t, 2.0, s.NetworkLoad)
	assert.Equal(t, 4.0, s.ValidationTime)
	require.Len(t, s.TPSHistory, 1)
	assert.Equal(t, 20.0, s.TPSHistory[0].Value)
	assert.Equal(t, 100.0, s.LedgerHistory[0].Value)
	assert.Equal(t, 200.0, s.LoadHistory[0].Value)
	assert.Equal(t, 4.0, s.ConsensusHistory[0].Value)
}

func TestTracker_PartialEventsKeepPrevious(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	tracker := NewTracker(func() time.Time { return start })

	tracker.Observe(realtime.Event{
		Type:       realtime.EventPeerStatus,
		ReceivedAt: start.Add(time.Second),
		Ledger:     models.LedgerInfo{PeerCount: 120},
	})
	tracker.Observe(realtime.Event{
		Type:       realtime.EventConsensusPhase,
		ReceivedAt: start.Add(2 * time.Second),
		Ledger:     models.LedgerInfo{ConsensusPhase: "establish", Proposers: 33},
	})
	tracker.Observe(realtime.Event{
		Type:       realtime.EventValidationReceived,
		ReceivedAt: start.Add(3 * time.Second),
		Ledger:     models.LedgerInfo{Validations: 35},
	})

	s := tracker.Snapshot()
	assert.Equal(t, 120, s.PeerCount)
	assert.Equal(t, "establish", s.ConsensusPhase)
	assert.Equal(t, "establish", s.Round.Phase)
	assert.Equal(t, 33, s.Round.Proposers)
	assert.Equal(t, 35, s.Round.Validations)
	assert.Empty(t, s.TPSHistory, "only closed ledgers extend histories")
	assert.Zero(t, s.TPS)
}

func TestTracker_HistoryIsBounded(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	tracker := NewTracker(func() time.Time { return start })

	for i := 1; i <= MaxHistoryPoints+15; i++ {
		tracker.Observe(realtime.Event{
			Type:       realtime.EventLedgerClosed,
			ReceivedAt: start.Add(time.Duration(i) * 4 * time.Second),
			Ledger:     models.LedgerInfo{LedgerIndex: int64(i), TxnCount: 4},
		})
	}

	s := tracker.Snapshot()
	assert.Len(t, s.TPSHistory, MaxHistoryPoints)
	assert.Len(t, s.LedgerHistory, MaxHistoryPoints)
	assert.Equal(t, float64(MaxHistoryPoints+15), s.LedgerHistory[MaxHistoryPoints-1].Value)
	assert.Equal(t, 1.0, s.TPS)
}

func TestTracker_SnapshotIsCopy(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.Observe(realtime.Event{Type: realtime.EventLedgerClosed, Ledger: models.LedgerInfo{LedgerIndex: 1}})

	s := tracker.Snapshot()
	s.LedgerHistory[0].Value = 999

	assert.Equal(t, 1.0, tracker.Snapshot().LedgerHistory[0].Value)
}
