package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseStatus is the lifecycle state of a ticket purchase.
// A purchase starts as pending and moves exactly once to either
// confirmed or rejected.
type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "pending"
	PurchaseConfirmed PurchaseStatus = "confirmed"
	PurchaseRejected  PurchaseStatus = "rejected"
)

// Participant represents a registered end user capable of holding
// tickets and earning commission.
type Participant struct {
	ID            string    `json:"id"`
	DisplayName   string    `json:"displayName"`
	ReferrerID    string    `json:"referrerId,omitempty"` // empty when not referred
	TicketCount   int       `json:"ticketCount"`          // confirmed tickets only
	PayoutAddress string    `json:"payoutAddress,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// TicketPurchase is one paid entry intent. Quantity N produces N
// individual records so that confirmation order stays auditable.
type TicketPurchase struct {
	ID        string         `json:"id"`
	OwnerID   string         `json:"ownerId"`
	Status    PurchaseStatus `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Commission is a one-time credit to a referrer, created when their
// referral first reaches the configured confirmed-ticket threshold.
type Commission struct {
	ID            string          `json:"id"`
	BeneficiaryID string          `json:"beneficiaryId"`
	SourceID      string          `json:"sourceId"`
	Amount        decimal.Decimal `json:"amount"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// DrawResult stores the outcome of one daily draw.
type DrawResult struct {
	Date         string          `json:"date"` // YYYY-MM-DD, at most one per day
	WinnerID     string          `json:"winnerId"`
	WinnerName   string          `json:"winnerName"`
	TotalTickets int             `json:"totalTickets"`
	Payout       decimal.Decimal `json:"payout"`
	DrawnAt      time.Time       `json:"drawnAt"`
}

// LeaderboardEntry is a read-only aggregate of confirmed tickets per
// participant, computed by the store.
type LeaderboardEntry struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
	TicketCount   int    `json:"ticketCount"`
}
