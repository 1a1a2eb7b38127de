// Package notify defines the outbound side-effect collaborator. All
// notifications are best-effort and happen after the ledger transaction
// has committed; a failed notification never rolls anything back.
package notify

import (
	"github.com/google/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Notifier delivers messages and payouts to participants. The
// messaging transport plugs its own implementation in here; the ledger
// only sees this interface.
type Notifier interface {
	Notify(identity, message string)
	Transfer(address string, amount decimal.Decimal) (txID string, err error)
}

// LogNotifier writes outbound messages and transfers to the log. It is
// the default implementation until a real messaging transport and
// payment client are wired in.
type LogNotifier struct{}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Notify logs the outbound message.
func (n *LogNotifier) Notify(identity, message string) {
	logger.Infof("Notify %s: %s", identity, message)
}

// Transfer logs the payout and returns a synthetic transaction id.
func (n *LogNotifier) Transfer(address string, amount decimal.Decimal) (string, error) {
	txID := uuid.NewString()
	logger.Infof("Transfer %s to %s (tx %s)", amount.String(), address, txID)
	return txID, nil
}
