package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/songzhibin97/xrplfeed/internal/models"
)

type EventType string

const (
	EventLedgerClosed       EventType = "ledgerClosed"
	EventConsensusPhase     EventType = "consensusPhase"
	EventPeerStatus         EventType = "peerStatus"
	EventValidationReceived EventType = "validationReceived"
)

var errUnknownEvent = errors.New("unrecognized event type")

// Event is one recognized frame from the ledger stream.
type Event struct {
	Type       EventType
	Ledger     models.LedgerInfo
	Patches    map[string]models.PricePatch
	ReceivedAt time.Time
}

// EventHandler receives every recognized event.
type EventHandler func(Event)

type frame struct {
	Type string `json:"type"`
	models.LedgerInfo
	// validationReceived frames send the index as a string
	LedgerIndex json.Number `json:"ledger_index"`
	// rippled names the phase "consensus" on consensusPhase frames
	Consensus string                       `json:"consensus"`
	Tokens    map[string]models.PricePatch `json:"tokens"`
}

func parseEvent(msg []byte, now time.Time) (Event, error) {
	var f frame
	if err := json.Unmarshal(msg, &f); err != nil {
		return Event{}, fmt.Errorf("malformed frame: %w", err)
	}

	var typ EventType
	switch EventType(f.Type) {
	case EventLedgerClosed, EventConsensusPhase, EventPeerStatus, EventValidationReceived:
		typ = EventType(f.Type)
	case "peerStatusChange":
		typ = EventPeerStatus
	default:
		return Event{}, fmt.Errorf("%w: %q", errUnknownEvent, f.Type)
	}

	ledger := f.LedgerInfo
	if f.LedgerIndex != "" {
		idx, err := f.LedgerIndex.Int64()
		if err != nil {
			return Event{}, fmt.Errorf("malformed frame: ledger_index %q: %w", f.LedgerIndex, err)
		}
		ledger.LedgerIndex = idx
	}
	if ledger.ConsensusPhase == "" {
		ledger.ConsensusPhase = f.Consensus
	}

	return Event{
		Type:       typ,
		Ledger:     ledger,
		Patches:    f.Tokens,
		ReceivedAt: now,
	}, nil
}
