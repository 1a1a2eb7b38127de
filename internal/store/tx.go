package store

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"lotteryd/internal/models"
)

// Tx exposes typed record operations scoped to one transaction.
type Tx struct {
	tx *sql.Tx
}

// GetParticipant returns the participant with the given id, or nil when
// no such participant exists.
func (t *Tx) GetParticipant(id string) (*models.Participant, error) {
	var (
		p          models.Participant
		referrer   sql.NullString
		payoutAddr sql.NullString
	)
	err := t.tx.QueryRow(`
		SELECT id, display_name, referrer_id, ticket_count, payout_address, created_at
		FROM participants
		WHERE id = ?
	`, id).Scan(&p.ID, &p.DisplayName, &referrer, &p.TicketCount, &payoutAddr, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant %s: %w", id, err)
	}
	p.ReferrerID = referrer.String
	p.PayoutAddress = payoutAddr.String
	return &p, nil
}

// InsertParticipant stores a new participant row.
func (t *Tx) InsertParticipant(p *models.Participant) error {
	referrer := sql.NullString{String: p.ReferrerID, Valid: p.ReferrerID != ""}
	_, err := t.tx.Exec(`
		INSERT INTO participants (id, display_name, referrer_id, ticket_count, created_at)
		VALUES (?, ?, ?, 0, ?)
	`, p.ID, p.DisplayName, referrer, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert participant %s: %w", p.ID, err)
	}
	return nil
}

// SetPayoutAddress overwrites the participant's payout address.
func (t *Tx) SetPayoutAddress(id, address string) error {
	_, err := t.tx.Exec(`UPDATE participants SET payout_address = ? WHERE id = ?`, address, id)
	if err != nil {
		return fmt.Errorf("failed to set payout address for %s: %w", id, err)
	}
	return nil
}

// InsertPendingTickets stores the given purchase records.
func (t *Tx) InsertPendingTickets(records []models.TicketPurchase) error {
	for _, r := range records {
		_, err := t.tx.Exec(`
			INSERT INTO ticket_purchases (id, owner_id, status, created_at)
			VALUES (?, ?, ?, ?)
		`, r.ID, r.OwnerID, r.Status, r.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert ticket purchase: %w", err)
		}
	}
	return nil
}

// PendingTickets returns the owner's pending purchases oldest first.
func (t *Tx) PendingTickets(ownerID string) ([]models.TicketPurchase, error) {
	rows, err := t.tx.Query(`
		SELECT id, owner_id, status, created_at
		FROM ticket_purchases
		WHERE owner_id = ? AND status = ?
		ORDER BY created_at ASC, id ASC
	`, ownerID, models.PurchasePending)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending tickets for %s: %w", ownerID, err)
	}
	defer rows.Close()

	var records []models.TicketPurchase
	for rows.Next() {
		var r models.TicketPurchase
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.Status, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ticket purchase: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending tickets: %w", err)
	}
	return records, nil
}

// ResolvePending moves all of the owner's pending purchases to the
// given terminal status and returns how many rows moved.
func (t *Tx) ResolvePending(ownerID string, status models.PurchaseStatus) (int, error) {
	res, err := t.tx.Exec(`
		UPDATE ticket_purchases SET status = ?
		WHERE owner_id = ? AND status = ?
	`, status, ownerID, models.PurchasePending)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve pending tickets for %s: %w", ownerID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// AddTickets increments the participant's confirmed ticket count.
func (t *Tx) AddTickets(id string, n int) error {
	_, err := t.tx.Exec(`UPDATE participants SET ticket_count = ticket_count + ? WHERE id = ?`, n, id)
	if err != nil {
		return fmt.Errorf("failed to add tickets for %s: %w", id, err)
	}
	return nil
}

// HasCommission reports whether a commission already exists for the
// (beneficiary, source) pair.
func (t *Tx) HasCommission(beneficiaryID, sourceID string) (bool, error) {
	var count int
	err := t.tx.QueryRow(`
		SELECT COUNT(*) FROM commissions WHERE beneficiary_id = ? AND source_id = ?
	`, beneficiaryID, sourceID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check commission: %w", err)
	}
	return count > 0, nil
}

// InsertCommission stores a commission record.
func (t *Tx) InsertCommission(c *models.Commission) error {
	_, err := t.tx.Exec(`
		INSERT INTO commissions (id, beneficiary_id, source_id, amount, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, c.ID, c.BeneficiaryID, c.SourceID, c.Amount.String(), c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert commission: %w", err)
	}
	return nil
}

// Commissions returns all commissions credited to the beneficiary,
// latest first.
func (t *Tx) Commissions(beneficiaryID string) ([]models.Commission, error) {
	rows, err := t.tx.Query(`
		SELECT id, beneficiary_id, source_id, amount, created_at
		FROM commissions
		WHERE beneficiary_id = ?
		ORDER BY created_at DESC
	`, beneficiaryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query commissions for %s: %w", beneficiaryID, err)
	}
	defer rows.Close()

	var commissions []models.Commission
	for rows.Next() {
		var (
			c      models.Commission
			amount string
		)
		if err := rows.Scan(&c.ID, &c.BeneficiaryID, &c.SourceID, &amount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan commission: %w", err)
		}
		c.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("failed to parse commission amount %q: %w", amount, err)
		}
		commissions = append(commissions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate commissions: %w", err)
	}
	return commissions, nil
}

// DrawResultByDate returns the draw result for the given date, or nil
// when no draw has happened yet.
func (t *Tx) DrawResultByDate(date string) (*models.DrawResult, error) {
	var (
		r      models.DrawResult
		payout string
	)
	err := t.tx.QueryRow(`
		SELECT draw_date, winner_id, winner_name, total_tickets, payout, drawn_at
		FROM draw_results
		WHERE draw_date = ?
	`, date).Scan(&r.Date, &r.WinnerID, &r.WinnerName, &r.TotalTickets, &payout, &r.DrawnAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draw result for %s: %w", date, err)
	}
	r.Payout, err = decimal.NewFromString(payout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse payout %q: %w", payout, err)
	}
	return &r, nil
}

// InsertDrawResult stores a draw result.
func (t *Tx) InsertDrawResult(r *models.DrawResult) error {
	_, err := t.tx.Exec(`
		INSERT INTO draw_results (draw_date, winner_id, winner_name, total_tickets, payout, drawn_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.Date, r.WinnerID, r.WinnerName, r.TotalTickets, r.Payout.String(), r.DrawnAt)
	if err != nil {
		return fmt.Errorf("failed to insert draw result: %w", err)
	}
	return nil
}

// DrawHistory returns past draw results latest first. limit <= 0 means
// no limit.
func (t *Tx) DrawHistory(limit int) ([]models.DrawResult, error) {
	query := `
		SELECT draw_date, winner_id, winner_name, total_tickets, payout, drawn_at
		FROM draw_results
		ORDER BY draw_date DESC
	`
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = t.tx.Query(query+" LIMIT ?", limit)
	} else {
		rows, err = t.tx.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query draw history: %w", err)
	}
	defer rows.Close()

	var results []models.DrawResult
	for rows.Next() {
		var (
			r      models.DrawResult
			payout string
		)
		if err := rows.Scan(&r.Date, &r.WinnerID, &r.WinnerName, &r.TotalTickets, &payout, &r.DrawnAt); err != nil {
			return nil, fmt.Errorf("failed to scan draw result: %w", err)
		}
		r.Payout, err = decimal.NewFromString(payout)
		if err != nil {
			return nil, fmt.Errorf("failed to parse payout %q: %w", payout, err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate draw history: %w", err)
	}
	return results, nil
}

// TicketHolders returns every participant holding at least one
// confirmed ticket, with their confirmed counts, in stable id order.
func (t *Tx) TicketHolders() ([]models.LeaderboardEntry, error) {
	return t.holders(`
		SELECT p.id, p.display_name, COUNT(tp.id) AS tickets
		FROM participants p
		JOIN ticket_purchases tp ON tp.owner_id = p.id AND tp.status = ?
		GROUP BY p.id, p.display_name
		ORDER BY p.id ASC
	`, 0)
}

// Leaderboard returns confirmed ticket counts ranked highest first.
// This is a derived read-only view; correctness of the ledger never
// depends on it.
func (t *Tx) Leaderboard(limit int) ([]models.LeaderboardEntry, error) {
	return t.holders(`
		SELECT p.id, p.display_name, COUNT(tp.id) AS tickets
		FROM participants p
		JOIN ticket_purchases tp ON tp.owner_id = p.id AND tp.status = ?
		GROUP BY p.id, p.display_name
		ORDER BY tickets DESC, p.id ASC
	`, limit)
}

func (t *Tx) holders(query string, limit int) ([]models.LeaderboardEntry, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = t.tx.Query(query+" LIMIT ?", models.PurchaseConfirmed, limit)
	} else {
		rows, err = t.tx.Query(query, models.PurchaseConfirmed)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query ticket holders: %w", err)
	}
	defer rows.Close()

	var entries []models.LeaderboardEntry
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.ParticipantID, &e.DisplayName, &e.TicketCount); err != nil {
			return nil, fmt.Errorf("failed to scan ticket holder: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ticket holders: %w", err)
	}
	return entries, nil
}
