package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"hisab/internal/core"
	"hisab/internal/nepali"
)

// TransactionFilter narrows ListTransactions. Zero fields do not filter.
type TransactionFilter struct {
	Types      []core.TransactionType
	PartyKind  core.PartyKind
	PartyID    int64
	From       core.Date
	To         core.Date
	FiscalYear string
	Search     string
	Limit      int
	Offset     int
	WithItems  bool
}

const txColumns = `t.id, t.number, t.type, t.party_id, t.party_kind,
	COALESCE(CASE t.party_kind WHEN 'customer' THEN c.name ELSE s.name END, ''),
	t.date, t.fiscal_year, t.sub_total, t.discount, t.taxable_amount, t.vat, t.total,
	t.paid_amount, t.payment_mode, t.reference, t.notes, t.created_at, t.updated_at`

const txFrom = ` FROM transactions t
	LEFT JOIN customers c ON t.party_kind = 'customer' AND c.id = t.party_id
	LEFT JOIN suppliers s ON t.party_kind = 'supplier' AND s.id = t.party_id`

// TransactionNumber formats a voucher number such as "SI-2081/82-0001".
func TransactionNumber(prefix, fiscalYear string, seq int64) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, fiscalYear, seq)
}

func sequenceKey(typ core.TransactionType, fiscalYear string) string {
	return "sequence." + string(typ) + "." + fiscalYear
}

// CreateTransaction stores the header and its items atomically. When Number
// is empty the next number of the type's fiscal-year sequence is assigned
// using prefix.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction, prefix string) (core.Transaction, error) {
	if err := fillFiscalYear(&t); err != nil {
		return core.Transaction{}, err
	}
	now := r.timestamp()

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if err := partyExists(ctx, tx, t.PartyKind, t.PartyID); err != nil {
			return err
		}
		if t.Number == "" {
			seq, err := allocateSequence(ctx, tx, t.Type, t.FiscalYear, now)
			if err != nil {
				return err
			}
			t.Number = TransactionNumber(prefix, t.FiscalYear, seq)
		}

		res, err := tx.ExecContext(ctx, `INSERT INTO transactions
			(number, type, party_id, party_kind, date, fiscal_year, sub_total, discount, taxable_amount,
			 vat, total, paid_amount, payment_mode, reference, notes, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.Number, string(t.Type), t.PartyID, string(t.PartyKind), t.Date.String(), t.FiscalYear,
			t.SubTotal.Paisa, t.Discount.Paisa, t.TaxableAmount.Paisa, t.VAT.Paisa, t.Total.Paisa,
			t.PaidAmount.Paisa, string(t.PaymentMode), t.Reference, t.Notes, now, now)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("transaction number %s: %w", t.Number, core.ErrConflict)
			}
			return fmt.Errorf("insert transaction: %w", err)
		}
		if t.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		return insertItems(ctx, tx, t.ID, t.Items)
	})
	if err != nil {
		return core.Transaction{}, err
	}
	for i := range t.Items {
		t.Items[i].TransactionID = t.ID
	}
	t.CreatedAt = parseTime(now)
	t.UpdatedAt = t.CreatedAt
	return t, nil
}

// UpdateTransaction rewrites the header and replaces the items. The voucher
// number is kept.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.FiscalYear = ""
	if err := fillFiscalYear(&t); err != nil {
		return core.Transaction{}, err
	}
	now := r.timestamp()

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if err := partyExists(ctx, tx, t.PartyKind, t.PartyID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `UPDATE transactions SET
			type = ?, party_id = ?, party_kind = ?, date = ?, fiscal_year = ?, sub_total = ?, discount = ?,
			taxable_amount = ?, vat = ?, total = ?, paid_amount = ?, payment_mode = ?, reference = ?,
			notes = ?, updated_at = ?
			WHERE id = ?`,
			string(t.Type), t.PartyID, string(t.PartyKind), t.Date.String(), t.FiscalYear,
			t.SubTotal.Paisa, t.Discount.Paisa, t.TaxableAmount.Paisa, t.VAT.Paisa, t.Total.Paisa,
			t.PaidAmount.Paisa, string(t.PaymentMode), t.Reference, t.Notes, now, t.ID)
		if err != nil {
			return fmt.Errorf("update transaction %d: %w", t.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("transaction %d: %w", t.ID, core.ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM transaction_items WHERE transaction_id = ?`, t.ID); err != nil {
			return fmt.Errorf("clear items of transaction %d: %w", t.ID, err)
		}
		return insertItems(ctx, tx, t.ID, t.Items)
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return r.GetTransaction(ctx, t.ID)
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	db, release, err := r.acquire()
	if err != nil {
		return core.Transaction{}, err
	}
	defer release()

	row := db.QueryRowContext(ctx, `SELECT `+txColumns+txFrom+` WHERE t.id = ?`, id)
	t, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, notFound(err, "transaction", id)
	}
	items, err := loadItems(ctx, db, `transaction_id = ?`, id)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Items = items[id]
	return t, nil
}

// ListTransactions returns matching transactions ordered by date then ID.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	where, args := f.where()

	db, release, err := r.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	query := `SELECT ` + txColumns + txFrom + where + ` ORDER BY t.date, t.id`
	if f.Limit > 0 {
		query += ` LIMIT ` + strconv.Itoa(f.Limit) + ` OFFSET ` + strconv.Itoa(max(f.Offset, 0))
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	if f.WithItems && len(out) > 0 {
		ids := make([]string, len(out))
		for i, t := range out {
			ids[i] = strconv.FormatInt(t.ID, 10)
		}
		items, err := loadItems(ctx, db, `transaction_id IN (`+strings.Join(ids, ",")+`)`)
		if err != nil {
			return nil, err
		}
		for i := range out {
			out[i].Items = items[out[i].ID]
		}
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM transaction_items WHERE transaction_id = ?`, id); err != nil {
			return fmt.Errorf("delete items of transaction %d: %w", id, err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete transaction %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
		}
		return nil
	})
}

// NextSequence returns the sequence number the next transaction of typ in
// fiscalYear will receive, without consuming it.
func (r *SQLiteRepository) NextSequence(ctx context.Context, typ core.TransactionType, fiscalYear string) (int64, error) {
	v, err := r.GetSetting(ctx, sequenceKey(typ, fiscalYear))
	if errors.Is(err, core.ErrNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt sequence %s: %w", sequenceKey(typ, fiscalYear), err)
	}
	return n + 1, nil
}

func allocateSequence(ctx context.Context, tx *sql.Tx, typ core.TransactionType, fiscalYear, now string) (int64, error) {
	var raw string
	err := tx.QueryRowContext(ctx, `INSERT INTO settings (key, value, updated_at) VALUES (?, '1', ?)
		ON CONFLICT(key) DO UPDATE SET value = CAST(value AS INTEGER) + 1, updated_at = excluded.updated_at
		RETURNING value`, sequenceKey(typ, fiscalYear), now).Scan(&raw)
	if err != nil {
		return 0, fmt.Errorf("allocate sequence: %w", err)
	}
	seq, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("allocate sequence: %w", err)
	}
	return seq, nil
}

func fillFiscalYear(t *core.Transaction) error {
	if t.FiscalYear != "" {
		return nil
	}
	fy, err := nepali.FiscalYearOf(t.Date.Time)
	if err != nil {
		return fmt.Errorf("%w: date %s outside the supported calendar", core.ErrValidation, t.Date)
	}
	t.FiscalYear = fy.Label
	return nil
}

func partyExists(ctx context.Context, tx *sql.Tx, kind core.PartyKind, id int64) error {
	table, err := partyTable(kind)
	if err != nil {
		return err
	}
	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", kind, id, core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("look up %s %d: %w", kind, id, err)
	}
	return nil
}

func insertItems(ctx context.Context, tx *sql.Tx, txID int64, items []core.TransactionItem) error {
	if len(items) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO transaction_items
		(transaction_id, service_id, description, quantity, rate, amount, taxable)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare item insert: %w", err)
	}
	defer stmt.Close()

	for i := range items {
		it := &items[i]
		var service any
		if it.ServiceID != nil {
			service = *it.ServiceID
		}
		res, err := stmt.ExecContext(ctx, txID, service, it.Description, it.Quantity.String(),
			it.Rate.Paisa, it.Amount.Paisa, boolInt(it.Taxable))
		if err != nil {
			return fmt.Errorf("insert item %d: %w", i+1, err)
		}
		if it.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("insert item %d: %w", i+1, err)
		}
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadItems(ctx context.Context, q queryer, where string, args ...any) (map[int64][]core.TransactionItem, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, transaction_id, service_id, description, quantity, rate, amount, taxable
		FROM transaction_items WHERE `+where+` ORDER BY transaction_id, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]core.TransactionItem)
	for rows.Next() {
		var (
			it      core.TransactionItem
			service sql.NullInt64
			qty     string
			rate    int64
			amt     int64
			taxable int
		)
		if err := rows.Scan(&it.ID, &it.TransactionID, &service, &it.Description, &qty, &rate, &amt, &taxable); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if service.Valid {
			id := service.Int64
			it.ServiceID = &id
		}
		if it.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("item %d quantity %q: %w", it.ID, qty, err)
		}
		it.Rate = core.Money{Paisa: rate}
		it.Amount = core.Money{Paisa: amt}
		it.Taxable = taxable == 1
		out[it.TransactionID] = append(out[it.TransactionID], it)
	}
	return out, rows.Err()
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		t                                      core.Transaction
		typ, kind, day, mode, created, updated string
		sub, disc, taxable, vat, total, paid   int64
	)
	err := s.Scan(&t.ID, &t.Number, &typ, &t.PartyID, &kind, &t.PartyName, &day, &t.FiscalYear,
		&sub, &disc, &taxable, &vat, &total, &paid, &mode, &t.Reference, &t.Notes, &created, &updated)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TransactionType(typ)
	t.PartyKind = core.PartyKind(kind)
	t.Date = parseDate(day)
	t.SubTotal = core.Money{Paisa: sub}
	t.Discount = core.Money{Paisa: disc}
	t.TaxableAmount = core.Money{Paisa: taxable}
	t.VAT = core.Money{Paisa: vat}
	t.Total = core.Money{Paisa: total}
	t.PaidAmount = core.Money{Paisa: paid}
	t.PaymentMode = core.PaymentMode(mode)
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(updated)
	return t, nil
}

func (f TransactionFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if len(f.Types) > 0 {
		marks := make([]string, len(f.Types))
		for i, typ := range f.Types {
			marks[i] = "?"
			args = append(args, string(typ))
		}
		conds = append(conds, `t.type IN (`+strings.Join(marks, ",")+`)`)
	}
	if f.PartyKind != "" {
		conds = append(conds, `t.party_kind = ?`)
		args = append(args, string(f.PartyKind))
	}
	if f.PartyID > 0 {
		conds = append(conds, `t.party_id = ?`)
		args = append(args, f.PartyID)
	}
	if !f.From.IsZero() {
		conds = append(conds, `t.date >= ?`)
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		conds = append(conds, `t.date <= ?`)
		args = append(args, f.To.String())
	}
	if f.FiscalYear != "" {
		conds = append(conds, `t.fiscal_year = ?`)
		args = append(args, f.FiscalYear)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + s + "%"
		conds = append(conds, `(t.number LIKE ? OR t.reference LIKE ? OR t.notes LIKE ? OR c.name LIKE ? OR s.name LIKE ?)`)
		args = append(args, like, like, like, like, like)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return ` WHERE ` + strings.Join(conds, " AND "), args
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
