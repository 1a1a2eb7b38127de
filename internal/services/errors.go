package services

import "errors"

// Expected, recoverable outcomes surfaced to the transport layer. None
// of these is fatal to the process.
var (
	ErrInvalidQuantity        = errors.New("quantity must be a positive integer within the configured maximum")
	ErrUnknownParticipant     = errors.New("participant is not registered")
	ErrNothingPending         = errors.New("no pending ticket purchases")
	ErrNoEligibleParticipants = errors.New("no participants hold a confirmed ticket")
	ErrAlreadyDrawn           = errors.New("a draw result already exists for this date")
	ErrInvalidAddress         = errors.New("invalid payout address")
)
