package storage

import (
	"context"
	"fmt"
	"strings"

	"hisab/internal/core"
)

const serviceColumns = `id, name, description, rate, unit, taxable, active, created_at, updated_at`

func (r *SQLiteRepository) CreateService(ctx context.Context, s core.Service) (core.Service, error) {
	now := r.timestamp()
	db, release, err := r.acquire()
	if err != nil {
		return core.Service{}, err
	}
	defer release()

	res, err := db.ExecContext(ctx, `INSERT INTO services
		(name, description, rate, unit, taxable, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(s.Name), s.Description, s.Rate.Paisa, s.Unit,
		boolInt(s.Taxable), boolInt(s.Active), now, now)
	if err != nil {
		return core.Service{}, fmt.Errorf("insert service: %w", err)
	}
	if s.ID, err = res.LastInsertId(); err != nil {
		return core.Service{}, fmt.Errorf("insert service: %w", err)
	}
	s.Name = strings.TrimSpace(s.Name)
	s.CreatedAt = parseTime(now)
	s.UpdatedAt = s.CreatedAt
	return s, nil
}

func (r *SQLiteRepository) UpdateService(ctx context.Context, s core.Service) (core.Service, error) {
	now := r.timestamp()
	db, release, err := r.acquire()
	if err != nil {
		return core.Service{}, err
	}
	defer release()

	res, err := db.ExecContext(ctx, `UPDATE services SET
		name = ?, description = ?, rate = ?, unit = ?, taxable = ?, active = ?, updated_at = ?
		WHERE id = ?`,
		strings.TrimSpace(s.Name), s.Description, s.Rate.Paisa, s.Unit,
		boolInt(s.Taxable), boolInt(s.Active), now, s.ID)
	if err != nil {
		return core.Service{}, fmt.Errorf("update service %d: %w", s.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Service{}, fmt.Errorf("service %d: %w", s.ID, core.ErrNotFound)
	}
	row := db.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = ?`, s.ID)
	out, err := scanService(row)
	if err != nil {
		return core.Service{}, notFound(err, "service", s.ID)
	}
	return out, nil
}

func (r *SQLiteRepository) GetService(ctx context.Context, id int64) (core.Service, error) {
	db, release, err := r.acquire()
	if err != nil {
		return core.Service{}, err
	}
	defer release()

	row := db.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = ?`, id)
	s, err := scanService(row)
	if err != nil {
		return core.Service{}, notFound(err, "service", id)
	}
	return s, nil
}

func (r *SQLiteRepository) ListServices(ctx context.Context, includeInactive bool) ([]core.Service, error) {
	db, release, err := r.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	query := `SELECT ` + serviceColumns + ` FROM services`
	if !includeInactive {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY name COLLATE NOCASE, id`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var out []core.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteService removes a service. Line items keep their description and
// lose the link.
func (r *SQLiteRepository) DeleteService(ctx context.Context, id int64) error {
	db, release, err := r.acquire()
	if err != nil {
		return err
	}
	defer release()

	res, err := db.ExecContext(ctx, `DELETE FROM services WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete service %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("service %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func scanService(s scanner) (core.Service, error) {
	var (
		out              core.Service
		rate             int64
		taxable, active  int
		created, updated string
	)
	if err := s.Scan(&out.ID, &out.Name, &out.Description, &rate, &out.Unit, &taxable, &active, &created, &updated); err != nil {
		return core.Service{}, err
	}
	out.Rate = core.Money{Paisa: rate}
	out.Taxable = taxable == 1
	out.Active = active == 1
	out.CreatedAt = parseTime(created)
	out.UpdatedAt = parseTime(updated)
	return out, nil
}
