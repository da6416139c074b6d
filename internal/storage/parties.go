package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"hisab/internal/core"
)

// PartyFilter narrows ListParties. Search matches name, phone or PAN.
type PartyFilter struct {
	Kind            core.PartyKind
	Search          string
	IncludeInactive bool
}

const partyColumns = `id, name, phone, email, address, pan, opening_balance, opening_type,
	opening_date, credit_days, active, created_at, updated_at`

func partyTable(kind core.PartyKind) (string, error) {
	switch kind {
	case core.Customer:
		return "customers", nil
	case core.Supplier:
		return "suppliers", nil
	}
	return "", core.ErrInvalidKind
}

func (r *SQLiteRepository) CreateParty(ctx context.Context, p core.Party) (core.Party, error) {
	table, err := partyTable(p.Kind)
	if err != nil {
		return core.Party{}, err
	}
	if p.OpeningType == "" {
		p.OpeningType = p.NaturalType()
	}
	now := r.timestamp()

	db, release, err := r.acquire()
	if err != nil {
		return core.Party{}, err
	}
	defer release()

	res, err := db.ExecContext(ctx, `INSERT INTO `+table+`
		(name, phone, email, address, pan, opening_balance, opening_type, opening_date, credit_days, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(p.Name), p.Phone, p.Email, p.Address, p.PAN,
		p.OpeningBalance.Paisa, string(p.OpeningType), p.OpeningDate.String(),
		p.CreditDays, boolInt(p.Active), now, now)
	if err != nil {
		return core.Party{}, fmt.Errorf("insert %s: %w", p.Kind, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Party{}, fmt.Errorf("insert %s: %w", p.Kind, err)
	}
	p.ID = id
	p.Name = strings.TrimSpace(p.Name)
	p.CreatedAt = parseTime(now)
	p.UpdatedAt = p.CreatedAt
	return p, nil
}

func (r *SQLiteRepository) UpdateParty(ctx context.Context, p core.Party) (core.Party, error) {
	table, err := partyTable(p.Kind)
	if err != nil {
		return core.Party{}, err
	}
	if p.OpeningType == "" {
		p.OpeningType = p.NaturalType()
	}
	now := r.timestamp()

	db, release, err := r.acquire()
	if err != nil {
		return core.Party{}, err
	}
	defer release()

	res, err := db.ExecContext(ctx, `UPDATE `+table+` SET
		name = ?, phone = ?, email = ?, address = ?, pan = ?, opening_balance = ?,
		opening_type = ?, opening_date = ?, credit_days = ?, active = ?, updated_at = ?
		WHERE id = ?`,
		strings.TrimSpace(p.Name), p.Phone, p.Email, p.Address, p.PAN, p.OpeningBalance.Paisa,
		string(p.OpeningType), p.OpeningDate.String(), p.CreditDays, boolInt(p.Active), now, p.ID)
	if err != nil {
		return core.Party{}, fmt.Errorf("update %s %d: %w", p.Kind, p.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Party{}, fmt.Errorf("%s %d: %w", p.Kind, p.ID, core.ErrNotFound)
	}
	return r.getParty(ctx, db, p.Kind, p.ID)
}

func (r *SQLiteRepository) GetParty(ctx context.Context, kind core.PartyKind, id int64) (core.Party, error) {
	db, release, err := r.acquire()
	if err != nil {
		return core.Party{}, err
	}
	defer release()
	return r.getParty(ctx, db, kind, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *SQLiteRepository) getParty(ctx context.Context, q queryRower, kind core.PartyKind, id int64) (core.Party, error) {
	table, err := partyTable(kind)
	if err != nil {
		return core.Party{}, err
	}
	row := q.QueryRowContext(ctx, `SELECT `+partyColumns+` FROM `+table+` WHERE id = ?`, id)
	p, err := scanParty(row, kind)
	if err != nil {
		return core.Party{}, notFound(err, string(kind), id)
	}
	return p, nil
}

// ListParties returns parties ordered by name.
func (r *SQLiteRepository) ListParties(ctx context.Context, f PartyFilter) ([]core.Party, error) {
	kinds := []core.PartyKind{core.Customer, core.Supplier}
	if f.Kind != "" {
		kinds = []core.PartyKind{f.Kind}
	}

	db, release, err := r.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	var out []core.Party
	for _, kind := range kinds {
		table, err := partyTable(kind)
		if err != nil {
			return nil, err
		}
		query := `SELECT ` + partyColumns + ` FROM ` + table + ` WHERE 1 = 1`
		var args []any
		if !f.IncludeInactive {
			query += ` AND active = 1`
		}
		if s := strings.TrimSpace(f.Search); s != "" {
			like := "%" + s + "%"
			query += ` AND (name LIKE ? OR phone LIKE ? OR pan LIKE ?)`
			args = append(args, like, like, like)
		}
		query += ` ORDER BY name COLLATE NOCASE, id`

		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", table, err)
		}
		for rows.Next() {
			p, err := scanParty(rows, kind)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan %s: %w", kind, err)
			}
			out = append(out, p)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", table, err)
		}
	}
	return out, nil
}

// DeleteParty removes a party that has no transactions. Parties with history
// must be deactivated instead.
func (r *SQLiteRepository) DeleteParty(ctx context.Context, kind core.PartyKind, id int64) error {
	table, err := partyTable(kind)
	if err != nil {
		return err
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM transactions WHERE party_kind = ? AND party_id = ?`, string(kind), id).Scan(&n); err != nil {
			return fmt.Errorf("count transactions: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%s %d has %d transactions: %w", kind, id, n, core.ErrConflict)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete %s %d: %w", kind, id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%s %d: %w", kind, id, core.ErrNotFound)
		}
		return nil
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanParty(s scanner, kind core.PartyKind) (core.Party, error) {
	var (
		p                       core.Party
		opening                 int64
		openingType, openingDay string
		active                  int
		created, updated        string
	)
	err := s.Scan(&p.ID, &p.Name, &p.Phone, &p.Email, &p.Address, &p.PAN, &opening, &openingType,
		&openingDay, &p.CreditDays, &active, &created, &updated)
	if err != nil {
		return core.Party{}, err
	}
	p.Kind = kind
	p.OpeningBalance = core.Money{Paisa: opening}
	p.OpeningType = core.BalanceType(openingType)
	p.OpeningDate = parseDate(openingDay)
	p.Active = active == 1
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return p, nil
}
