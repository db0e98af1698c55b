package models

import (
	"fmt"
	"time"
)

const (
	ReservationReserved  = "reserved"
	ReservationConfirmed = "confirmed"
	ReservationReleased  = "released"
)

// CreditReservation holds credits taken from a profile until the operation
// that needed them either reaches the workflow engine (confirmed) or fails
// (released, credits refunded).
type CreditReservation struct {
	ID             string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID         string    `gorm:"type:varchar(64);uniqueIndex:ux_credit_reservations_key,priority:1" json:"user_id"`
	Operation      string    `gorm:"type:varchar(32)" json:"operation"`
	Cost           int       `json:"cost"`
	Status         string    `gorm:"type:varchar(16)" json:"status"`
	IdempotencyKey *string   `gorm:"type:varchar(128);uniqueIndex:ux_credit_reservations_key,priority:2" json:"idempotency_key,omitempty"`
	ResourceID     string    `gorm:"type:varchar(64)" json:"resource_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (CreditReservation) TableName() string {
	return "credit_reservations"
}

// InsufficientCreditsError is returned when a profile cannot cover an operation.
type InsufficientCreditsError struct {
	Needed    int
	Available int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: need %d, have %d", e.Needed, e.Available)
}
