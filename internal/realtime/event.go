// Package realtime fans seat state changes out to the watchers of a showing.
package realtime

import (
	"time"

	"github.com/iliyamo/cinema-seat-realtime/internal/model"
)

// EventType names a message on the watcher channel.
type EventType string

const (
	EventSnapshot      EventType = "snapshot"
	EventSeatUpdate    EventType = "seat-update"
	EventBookingUpdate EventType = "booking-update"
	EventShowingStatus EventType = "showing-status"
	EventAck           EventType = "ack"
	EventError         EventType = "error"
)

// Event is one message delivered to a watcher.  Seq is assigned by the hub
// and increases by one for every event published to a showing; a snapshot
// carries the sequence number of the last event it already reflects.
type Event struct {
	Type      EventType `json:"type"`
	ShowingID uint64    `json:"showing_id,omitempty"`
	Seq       uint64    `json:"seq,omitempty"`

	Seats       []model.Seat   `json:"seats,omitempty"`
	Labels      []string       `json:"labels,omitempty"`
	Status      string         `json:"status,omitempty"`
	PartyID     string         `json:"party_id,omitempty"`
	BookingCode string         `json:"booking_code,omitempty"`
	Booking     *model.Booking `json:"booking,omitempty"`

	// RequestID echoes the client's request on ack and error replies.
	RequestID string `json:"request_id,omitempty"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`

	At time.Time `json:"at"`

	// Origin is the watcher that caused the event.  It is excluded from
	// delivery because it receives an ack instead.
	Origin string `json:"-"`
}

// SeatEvent builds a seat-update for the given labels.
func SeatEvent(status model.SeatStatus, partyID string, labels ...string) Event {
	return Event{
		Type:    EventSeatUpdate,
		Labels:  labels,
		Status:  string(status),
		PartyID: partyID,
		At:      time.Now().UTC(),
	}
}
