package model

import "time"

// SeatStatus is the lifecycle state of a seat within a single showing.
type SeatStatus string

const (
    SeatAvailable SeatStatus = "available"
    SeatHeld      SeatStatus = "held"
    SeatBooked    SeatStatus = "booked"
    SeatBlocked   SeatStatus = "blocked"
)

// Valid reports whether s is one of the known seat statuses.
func (s SeatStatus) Valid() bool {
    switch s {
    case SeatAvailable, SeatHeld, SeatBooked, SeatBlocked:
        return true
    }
    return false
}

// SeatClass describes the kind of seat and drives its price multiplier.
type SeatClass string

const (
    SeatStandard  SeatClass = "standard"
    SeatPremium   SeatClass = "premium"
    SeatCompanion SeatClass = "companion"
)

// Valid reports whether c is one of the known seat classes.
func (c SeatClass) Valid() bool {
    switch c {
    case SeatStandard, SeatPremium, SeatCompanion:
        return true
    }
    return false
}

// Seat is one seat of a showing's layout together with its current
// reservation state.  Seats are uniquely identified by the pair
// (ShowingID, Label) and correspond to rows of the `showing_seats` table.
//
// Fields:
//  ShowingID  – showing that owns this seat instance.
//  Label      – human label such as "A1", unique per showing.
//  Row        – row letter(s), e.g. "A" or "AA".
//  Column     – 1-based position within the row.
//  Class      – standard, premium or companion.
//  PriceCents – stored unit price used when a booking is finalized.
//  Status     – available, held, booked or blocked.
//  HolderID   – party currently holding the seat ("" unless held).
//  HeldAt     – when the current hold started (nil unless held).
//  Version    – incremented on every successful write.
type Seat struct {
    ShowingID  uint64     `json:"showing_id"`
    Label      string     `json:"label"`
    Row        string     `json:"row"`
    Column     uint32     `json:"column"`
    Class      SeatClass  `json:"class"`
    PriceCents uint32     `json:"price_cents"`
    Status     SeatStatus `json:"status"`
    HolderID   string     `json:"holder_id,omitempty"`
    HeldAt     *time.Time `json:"held_at,omitempty"`
    Version    uint32     `json:"version"`
}

// HeldBy reports whether the seat is currently held by partyID.
func (s Seat) HeldBy(partyID string) bool {
    return s.Status == SeatHeld && partyID != "" && s.HolderID == partyID
}

// StaleAt reports whether the seat is held and its hold started before cutoff.
func (s Seat) StaleAt(cutoff time.Time) bool {
    return s.Status == SeatHeld && s.HeldAt != nil && s.HeldAt.Before(cutoff)
}

// MaxPartyIDLength is the widest party id the seat and booking tables store.
const MaxPartyIDLength = 64

// ValidPartyID reports whether id can identify a holder.
func ValidPartyID(id string) bool {
    return id != "" && len(id) <= MaxPartyIDLength
}
