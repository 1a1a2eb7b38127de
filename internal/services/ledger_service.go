package services

import (
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lotteryd/internal/models"
	"lotteryd/internal/notify"
	"lotteryd/internal/store"
)

// Policy holds the configurable business rules of the ledger.
type Policy struct {
	TicketPrice         decimal.Decimal
	MaxPurchaseQuantity int
	CommissionRate      decimal.Decimal
	// CommissionThreshold is the confirmed ticket count a referred
	// participant must first reach before their referrer earns the
	// one-time commission.
	CommissionThreshold int
}

// LedgerService owns the semantic rules for registering participants,
// recording and confirming ticket purchases, crediting referral
// commissions, and selecting daily draw winners. Every mutation runs in
// a single store transaction; the mutex on top serializes mutations so
// two concurrent confirmations cannot double-fire the commission rule
// and two concurrent draws cannot produce two winners for one day.
type LedgerService struct {
	mu       sync.Mutex
	store    *store.Store
	notifier notify.Notifier
	policy   Policy
}

// NewLedgerService creates a LedgerService.
func NewLedgerService(st *store.Store, notifier notify.Notifier, policy Policy) *LedgerService {
	return &LedgerService{
		store:    st,
		notifier: notifier,
		policy:   policy,
	}
}

// Register creates a participant, or returns the existing one unchanged
// when the identity is already registered. A referrer is stored only
// when it names a different, already-registered participant; invalid
// referral input is dropped silently and registration still succeeds.
func (s *LedgerService) Register(identity, displayName, referrerID string) (*models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var participant *models.Participant
	err := s.store.WithTx(func(tx *store.Tx) error {
		existing, err := tx.GetParticipant(identity)
		if err != nil {
			return err
		}
		if existing != nil {
			participant = existing
			return nil
		}

		referrer := ""
		if referrerID != "" && referrerID != identity {
			ref, err := tx.GetParticipant(referrerID)
			if err != nil {
				return err
			}
			if ref != nil {
				referrer = referrerID
			}
		}

		participant = &models.Participant{
			ID:          identity,
			DisplayName: displayName,
			ReferrerID:  referrer,
			CreatedAt:   time.Now().UTC(),
		}
		return tx.InsertParticipant(participant)
	})
	if err != nil {
		return nil, err
	}
	return participant, nil
}

// RecordPurchase creates quantity pending purchase records for the
// participant. The confirmed ticket count does not move until an admin
// confirms the payment.
func (s *LedgerService) RecordPurchase(identity string, quantity int) ([]models.TicketPurchase, error) {
	if quantity <= 0 || quantity > s.policy.MaxPurchaseQuantity {
		return nil, ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var records []models.TicketPurchase
	err := s.store.WithTx(func(tx *store.Tx) error {
		participant, err := tx.GetParticipant(identity)
		if err != nil {
			return err
		}
		if participant == nil {
			return ErrUnknownParticipant
		}

		now := time.Now().UTC()
		records = make([]models.TicketPurchase, 0, quantity)
		for i := 0; i < quantity; i++ {
			records = append(records, models.TicketPurchase{
				ID:        uuid.NewString(),
				OwnerID:   identity,
				Status:    models.PurchasePending,
				CreatedAt: now,
			})
		}
		return tx.InsertPendingTickets(records)
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ConfirmResult reports the outcome of a confirmation call.
type ConfirmResult struct {
	ConfirmedCount      int  `json:"confirmedCount"`
	CommissionTriggered bool `json:"commissionTriggered"`
}

// ConfirmPurchase moves all of the participant's pending purchases to
// confirmed, oldest first, and increments their ticket count. The
// referral commission rule is evaluated in the same transaction: when
// the new count first reaches the threshold and the participant has a
// referrer, exactly one commission is credited to that referrer, no
// matter how many tickets this call confirms or how many purchases
// follow later.
func (s *LedgerService) ConfirmPurchase(identity string) (*ConfirmResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		result     ConfirmResult
		commission *models.Commission
	)
	err := s.store.WithTx(func(tx *store.Tx) error {
		participant, err := tx.GetParticipant(identity)
		if err != nil {
			return err
		}
		if participant == nil {
			return ErrUnknownParticipant
		}

		confirmed, err := tx.ResolvePending(identity, models.PurchaseConfirmed)
		if err != nil {
			return err
		}
		if confirmed == 0 {
			return ErrNothingPending
		}
		if err := tx.AddTickets(identity, confirmed); err != nil {
			return err
		}
		result.ConfirmedCount = confirmed

		commission, err = s.maybeCreditReferrer(tx, participant, confirmed)
		if err != nil {
			return err
		}
		result.CommissionTriggered = commission != nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	if commission != nil {
		s.notifier.Notify(commission.BeneficiaryID,
			fmt.Sprintf("Your referral %s reached %d tickets. Commission credited: %s USDT.",
				identity, s.policy.CommissionThreshold, commission.Amount.String()))
	}
	return &result, nil
}

// maybeCreditReferrer fires the one-time referral commission when the
// participant's confirmed count first reaches the threshold in this
// confirmation. Commission amount = rate x ticket price x threshold.
func (s *LedgerService) maybeCreditReferrer(tx *store.Tx, participant *models.Participant, confirmed int) (*models.Commission, error) {
	if participant.ReferrerID == "" {
		return nil, nil
	}

	threshold := s.policy.CommissionThreshold
	before := participant.TicketCount
	after := before + confirmed
	if before >= threshold || after < threshold {
		return nil, nil
	}

	exists, err := tx.HasCommission(participant.ReferrerID, participant.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}

	commission := &models.Commission{
		ID:            uuid.NewString(),
		BeneficiaryID: participant.ReferrerID,
		SourceID:      participant.ID,
		Amount: s.policy.CommissionRate.
			Mul(s.policy.TicketPrice).
			Mul(decimal.NewFromInt(int64(threshold))),
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.InsertCommission(commission); err != nil {
		return nil, err
	}
	logger.Infof("Commission credited: beneficiary=%s source=%s amount=%s",
		commission.BeneficiaryID, commission.SourceID, commission.Amount.String())
	return commission, nil
}

// RejectPurchase moves all of the participant's pending purchases to
// rejected. The ticket count is untouched; rejected records stay for
// audit and never become confirmable again.
func (s *LedgerService) RejectPurchase(identity string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rejected int
	err := s.store.WithTx(func(tx *store.Tx) error {
		participant, err := tx.GetParticipant(identity)
		if err != nil {
			return err
		}
		if participant == nil {
			return ErrUnknownParticipant
		}

		rejected, err = tx.ResolvePending(identity, models.PurchaseRejected)
		if err != nil {
			return err
		}
		if rejected == 0 {
			return ErrNothingPending
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rejected, nil
}

// tronAddressPattern matches TRON base58check addresses: the "T"
// prefix followed by 33 base58 characters.
var tronAddressPattern = regexp.MustCompile(`^T[1-9A-HJ-NP-Za-km-z]{33}$`)

// SetPayoutAddress validates and stores the participant's payout
// address, overwriting any previous value. Invalid addresses are
// rejected without mutating state.
func (s *LedgerService) SetPayoutAddress(identity, address string) error {
	if !tronAddressPattern.MatchString(address) {
		return ErrInvalidAddress
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.WithTx(func(tx *store.Tx) error {
		participant, err := tx.GetParticipant(identity)
		if err != nil {
			return err
		}
		if participant == nil {
			return ErrUnknownParticipant
		}
		return tx.SetPayoutAddress(identity, address)
	})
}

// Participant returns the participant with the given identity.
func (s *LedgerService) Participant(identity string) (*models.Participant, error) {
	var participant *models.Participant
	err := s.store.WithTx(func(tx *store.Tx) error {
		p, err := tx.GetParticipant(identity)
		if err != nil {
			return err
		}
		if p == nil {
			return ErrUnknownParticipant
		}
		participant = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return participant, nil
}

// PendingPurchases returns the participant's pending purchase records,
// oldest first.
func (s *LedgerService) PendingPurchases(identity string) ([]models.TicketPurchase, error) {
	var records []models.TicketPurchase
	err := s.store.WithTx(func(tx *store.Tx) error {
		participant, err := tx.GetParticipant(identity)
		if err != nil {
			return err
		}
		if participant == nil {
			return ErrUnknownParticipant
		}
		records, err = tx.PendingTickets(identity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Commissions returns all commissions credited to the participant.
func (s *LedgerService) Commissions(identity string) ([]models.Commission, error) {
	var commissions []models.Commission
	err := s.store.WithTx(func(tx *store.Tx) error {
		participant, err := tx.GetParticipant(identity)
		if err != nil {
			return err
		}
		if participant == nil {
			return ErrUnknownParticipant
		}
		commissions, err = tx.Commissions(identity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return commissions, nil
}

// Leaderboard returns the top confirmed-ticket holders.
func (s *LedgerService) Leaderboard(limit int) ([]models.LeaderboardEntry, error) {
	var entries []models.LeaderboardEntry
	err := s.store.WithTx(func(tx *store.Tx) error {
		var err error
		entries, err = tx.Leaderboard(limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// DrawHistory returns past draw results, latest first.
func (s *LedgerService) DrawHistory(limit int) ([]models.DrawResult, error) {
	var results []models.DrawResult
	err := s.store.WithTx(func(tx *store.Tx) error {
		var err error
		results, err = tx.DrawHistory(limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
