package services

import (
	crand "crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/google/logger"
	"github.com/shopspring/decimal"

	"lotteryd/internal/models"
	"lotteryd/internal/store"
)

var errInvalidTicketsTotal = errors.New("invalid total tickets")

// drawRandomInt is swapped out in tests for deterministic draws.
var drawRandomInt = secureRandomInt

type weightedHolder struct {
	participantID string
	displayName   string
	cumulativeSum int
}

// RunDailyDraw selects the winner for the given calendar day.
//
// Selection policy: one entry per confirmed ticket, so a holder with N
// confirmed tickets has N chances. Payout policy: pooled pot, ticket
// price times the total number of tickets entering the draw. Both are
// deliberate choices; do not mix in fixed-prize semantics.
//
// The check for an existing result and the insert of the new one run in
// the same transaction, so re-invoking for the same date is safe: the
// second call returns ErrAlreadyDrawn and never a second winner.
func (s *LedgerService) RunDailyDraw(date time.Time) (*models.DrawResult, error) {
	day := date.Format("2006-01-02")

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		result        *models.DrawResult
		winnerAddress string
	)
	err := s.store.WithTx(func(tx *store.Tx) error {
		existing, err := tx.DrawResultByDate(day)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAlreadyDrawn
		}

		holders, err := tx.TicketHolders()
		if err != nil {
			return err
		}
		if len(holders) == 0 {
			return ErrNoEligibleParticipants
		}

		winner, totalTickets, err := pickWinner(holders)
		if err != nil {
			return err
		}

		result = &models.DrawResult{
			Date:         day,
			WinnerID:     winner.participantID,
			WinnerName:   winner.displayName,
			TotalTickets: totalTickets,
			Payout:       s.policy.TicketPrice.Mul(decimal.NewFromInt(int64(totalTickets))),
			DrawnAt:      time.Now().UTC(),
		}
		if err := tx.InsertDrawResult(result); err != nil {
			return err
		}

		winnerRow, err := tx.GetParticipant(winner.participantID)
		if err != nil {
			return err
		}
		if winnerRow != nil {
			winnerAddress = winnerRow.PayoutAddress
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Infof("Draw %s: winner=%s tickets=%d payout=%s",
		result.Date, result.WinnerID, result.TotalTickets, result.Payout.String())
	s.dispatchWinnings(result, winnerAddress)
	return result, nil
}

// dispatchWinnings notifies the winner and triggers the payout after
// the draw transaction committed. Failures are logged only; the draw
// result stands regardless.
func (s *LedgerService) dispatchWinnings(result *models.DrawResult, address string) {
	s.notifier.Notify(result.WinnerID,
		fmt.Sprintf("You won the %s draw! %s USDT is on its way.", result.Date, result.Payout.String()))

	if address == "" {
		logger.Infof("Winner %s has no payout address on file, payout deferred", result.WinnerID)
		return
	}
	txID, err := s.notifier.Transfer(address, result.Payout)
	if err != nil {
		logger.Errorf("Payout transfer for draw %s failed: %v", result.Date, err)
		return
	}
	logger.Infof("Payout for draw %s sent, tx=%s", result.Date, txID)
}

// pickWinner draws one ticket uniformly at random across all confirmed
// tickets and maps it back to its holder via cumulative sums.
func pickWinner(holders []models.LeaderboardEntry) (weightedHolder, int, error) {
	weighted := make([]weightedHolder, 0, len(holders))
	totalTickets := 0
	for _, h := range holders {
		if h.TicketCount <= 0 {
			continue
		}
		totalTickets += h.TicketCount
		weighted = append(weighted, weightedHolder{
			participantID: h.ParticipantID,
			displayName:   h.DisplayName,
			cumulativeSum: totalTickets,
		})
	}
	if totalTickets <= 0 {
		return weightedHolder{}, 0, ErrNoEligibleParticipants
	}

	picked, err := drawRandomInt(totalTickets)
	if err != nil {
		return weightedHolder{}, 0, fmt.Errorf("failed to pick random ticket: %w", err)
	}

	target := picked + 1 // 1-based ticket index
	idx := sort.Search(len(weighted), func(i int) bool {
		return weighted[i].cumulativeSum >= target
	})
	if idx >= len(weighted) {
		return weightedHolder{}, 0, errInvalidTicketsTotal
	}
	return weighted[idx], totalTickets, nil
}

func secureRandomInt(max int) (int, error) {
	if max <= 0 {
		return 0, errInvalidTicketsTotal
	}
	n, err := crand.Int(crand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
