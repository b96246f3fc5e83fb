package model

// ShowingStatus is the lifecycle state of a showing.  Showings are owned by
// the catalog service; this package only relays their status to watchers.
type ShowingStatus string

const (
    ShowingScheduled ShowingStatus = "scheduled"
    ShowingOngoing   ShowingStatus = "ongoing"
    ShowingCompleted ShowingStatus = "completed"
    ShowingCancelled ShowingStatus = "cancelled"
)

// Valid reports whether s is a known showing status.
func (s ShowingStatus) Valid() bool {
    switch s {
    case ShowingScheduled, ShowingOngoing, ShowingCompleted, ShowingCancelled:
        return true
    }
    return false
}

// Layout is the seat map cloned into a showing when it is scheduled.
// RowClasses maps a 1-based row number to the class of every seat in that
// row; rows without an entry are standard.
type Layout struct {
    Rows           int               `json:"rows"`
    Columns        int               `json:"columns"`
    RowClasses     map[int]SeatClass `json:"row_classes"`
    BasePriceCents uint32            `json:"base_price_cents"`
}
