// Package queue defines message payloads exchanged over the message broker
// and the consumer that records them.
package queue

// BookingQueueName is the durable queue carrying booking lifecycle events.
const BookingQueueName = "booking.events"

// Booking event kinds.
const (
    KindFinalized = "finalized"
    KindConfirmed = "confirmed"
    KindCompleted = "completed"
    KindCancelled = "cancelled"
)

// BookingEvent is published after a booking write commits.  It contains
// enough information for downstream consumers to log, notify, or trigger
// analytics without querying the primary database.
type BookingEvent struct {
    Kind          string   `json:"kind"`
    Code          string   `json:"code"`
    ShowingID     uint64   `json:"showing_id"`
    PartyID       string   `json:"party_id"`
    CustomerEmail string   `json:"customer_email"`
    SeatLabels    []string `json:"seats"`
    TotalCents    uint32   `json:"total_cents"`
    Status        string   `json:"status"`
    PaymentMethod string   `json:"payment_method"`
    OccurredAt    string   `json:"occurred_at"`
}
