package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	TransactionCreated EventType = "transaction.created"
	TransactionUpdated EventType = "transaction.updated"
	TransactionDeleted EventType = "transaction.deleted"
	PartyChanged       EventType = "party.changed"
	BookRestored       EventType = "book.restored"
	BackupRequested    EventType = "backup.requested"
)

func (t EventType) Valid() bool {
	switch t {
	case TransactionCreated, TransactionUpdated, TransactionDeleted, PartyChanged, BookRestored, BackupRequested:
		return true
	}
	return false
}

// LedgerEvent announces a change to the book. It carries identifiers only;
// consumers read current state from the database.
type LedgerEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	EntityID   int64     `json:"entity_id,omitempty"`
	PartyKind  string    `json:"party_kind,omitempty"`
	PartyID    int64     `json:"party_id,omitempty"`
	FiscalYear string    `json:"fiscal_year,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewLedgerEvent(typ EventType, entityID int64) *LedgerEvent {
	return &LedgerEvent{
		ID:        uuid.NewString(),
		Type:      typ,
		EntityID:  entityID,
		Timestamp: time.Now().UTC(),
	}
}

// ForParty sets the affected party and fiscal year and returns the event.
func (e *LedgerEvent) ForParty(kind string, id int64, fiscalYear string) *LedgerEvent {
	e.PartyKind = kind
	e.PartyID = id
	e.FiscalYear = fiscalYear
	return e
}

func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if !e.Type.Valid() {
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	return &e, nil
}
