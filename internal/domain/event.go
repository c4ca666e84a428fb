package domain

import (
	"strings"
	"time"
)

// EventType names a ledger notification.
type EventType string

const (
	EventTransfer              EventType = "Transfer"
	EventFacilityRegistered    EventType = "FacilityRegistered"
	EventFacilityStatusChanged EventType = "FacilityStatusChanged"
	EventMinted                EventType = "Minted"
	EventRetired               EventType = "Retired"
	EventBurned                EventType = "Burned"
	EventApproval              EventType = "Approval"
	EventPaused                EventType = "Paused"
	EventUnpaused              EventType = "Unpaused"
	EventOwnershipTransferred  EventType = "OwnershipTransferred"
)

// Event is emitted after a state change has been committed. Only the fields
// relevant to Type are set.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`

	EntryIndex *uint64  `json:"entry_index,omitempty"`
	From       *Address `json:"from,omitempty"`
	To         *Address `json:"to,omitempty"`
	Amount     *Amount  `json:"amount,omitempty"`
	FacilityID string   `json:"facility_id,omitempty"`
	EnergyType string   `json:"energy_type,omitempty"`
	AmountMWh  uint64   `json:"amount_mwh,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Active     *bool    `json:"active,omitempty"`
	Account    *Address `json:"account,omitempty"`

	// Facility is the full registry record after a registration or status change.
	Facility *Facility `json:"facility,omitempty"`
}

// Subject is the broker subject the event is published on.
func (e Event) Subject() string {
	return "rec.events." + strings.ToLower(string(e.Type))
}
