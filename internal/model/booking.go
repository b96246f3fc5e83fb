package model

import "time"

// BookingStatus tracks the lifecycle of a booking.
type BookingStatus string

const (
    BookingPending   BookingStatus = "pending"
    BookingConfirmed BookingStatus = "confirmed"
    BookingCancelled BookingStatus = "cancelled"
    BookingCompleted BookingStatus = "completed"
)

// PaymentMethod is how the customer intends to pay.  Payment itself is
// handled outside this service.
type PaymentMethod string

const (
    PaymentCash   PaymentMethod = "cash"
    PaymentCard   PaymentMethod = "card"
    PaymentOnline PaymentMethod = "online"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
    switch m {
    case PaymentCash, PaymentCard, PaymentOnline:
        return true
    }
    return false
}

// PaymentStatus mirrors the external payment state of a booking.
type PaymentStatus string

const (
    PaymentPending  PaymentStatus = "pending"
    PaymentPaid     PaymentStatus = "paid"
    PaymentRefunded PaymentStatus = "refunded"
)

// Customer holds the contact details captured at finalize time.
type Customer struct {
    Name  string `json:"name"`
    Email string `json:"email"`
    Phone string `json:"phone"`
}

// Booking records a party's purchase of one or more seats for a showing.
// Code is the user-facing lookup handle and is distinct from ID, the
// internal primary key.  Rows live in `bookings`; seat membership lives in
// `booking_seats`.
//
// Fields:
//  ID            – bookings.id
//  Code          – bookings.code (unique, e.g. "BK7QF3M2KD9A")
//  ShowingID     – showing the seats belong to.
//  PartyID       – identity of the party that finalized the booking.
//  Customer      – contact details.
//  SeatLabels    – seats in the order they were requested.
//  TotalCents    – sum of the stored seat prices.
//  Status        – pending, confirmed, cancelled or completed.
//  PaymentMethod – cash, card or online.
//  PaymentStatus – pending, paid or refunded.
type Booking struct {
    ID            uint64        `json:"id"`
    Code          string        `json:"code"`
    ShowingID     uint64        `json:"showing_id"`
    PartyID       string        `json:"party_id"`
    Customer      Customer      `json:"customer"`
    SeatLabels    []string      `json:"seats"`
    TotalCents    uint32        `json:"total_cents"`
    Status        BookingStatus `json:"status"`
    PaymentMethod PaymentMethod `json:"payment_method"`
    PaymentStatus PaymentStatus `json:"payment_status"`
    CreatedAt     time.Time     `json:"created_at"`
    UpdatedAt     time.Time     `json:"updated_at"`
}

// Cancellable reports whether the booking may still be cancelled.
func (b Booking) Cancellable() bool {
    return b.Status != BookingCancelled && b.Status != BookingCompleted
}
