package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/copytrader/pkg/id"
)

// SQLite implements Store on a single database file. Short-lived node
// processes on one host share it; SQLite's per-statement atomicity is all
// the coordination the partitioned key space needs.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) EnabledAccounts(ctx context.Context) ([]Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, type, path, enabled, symbol_map, suffix, slippage_tolerance
		FROM accounts
		WHERE enabled = 1
		ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLite) AccountByName(ctx context.Context, name string) (Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, type, path, enabled, symbol_map, suffix, slippage_tolerance
		FROM accounts
		WHERE name = ?`, name)

	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return Account{}, fmt.Errorf("account %q: %w", name, ErrNotFound)
	}
	return a, err
}

func (s *SQLite) SaveAccount(ctx context.Context, a Account) error {
	symbolMap, err := json.Marshal(a.SymbolMap)
	if err != nil {
		return fmt.Errorf("marshal symbol map: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO accounts (name, type, path, enabled, symbol_map, suffix, slippage_tolerance)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			type = excluded.type,
			path = excluded.path,
			enabled = excluded.enabled,
			symbol_map = excluded.symbol_map,
			suffix = excluded.suffix,
			slippage_tolerance = excluded.slippage_tolerance`,
		a.Name, string(a.Type), a.Path, a.Enabled, string(symbolMap), a.Suffix, a.SlippageTolerance)
	return err
}

func (s *SQLite) SetEnabled(ctx context.Context, name string, enabled bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET enabled = ? WHERE name = ?`, enabled, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("account %q: %w", name, ErrNotFound)
	}
	return nil
}

func (s *SQLite) CreateMapping(ctx context.Context, m Mapping) (string, error) {
	if m.ID == "" {
		m.ID = id.New()
	}
	if m.Status == "" {
		m.Status = StatusOpen
	}
	if m.OpenTime.IsZero() {
		m.OpenTime = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mappings (id, master_ticket, slave_name, slave_ticket, symbol, direction, status, open_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.MasterTicket, m.SlaveName, m.SlaveTicket, m.Symbol, m.Direction, string(m.Status), m.OpenTime)
	if err != nil {
		return "", fmt.Errorf("create mapping %d/%s: %w", m.MasterTicket, m.SlaveName, err)
	}
	return m.ID, nil
}

func (s *SQLite) OpenMapping(ctx context.Context, masterTicket int64, slaveName string) (Mapping, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, master_ticket, slave_name, slave_ticket, symbol, direction, status, open_time, close_time
		FROM mappings
		WHERE master_ticket = ? AND slave_name = ? AND status = 'OPEN'`,
		masterTicket, slaveName)

	m, err := scanMapping(row)
	if err == sql.ErrNoRows {
		return Mapping{}, fmt.Errorf("open mapping %d/%s: %w", masterTicket, slaveName, ErrNotFound)
	}
	return m, err
}

func (s *SQLite) CloseMapping(ctx context.Context, masterTicket int64, slaveName string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE mappings
		SET status = 'CLOSED', close_time = ?
		WHERE master_ticket = ? AND slave_name = ? AND status = 'OPEN'`,
		time.Now().UTC(), masterTicket, slaveName)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLite) OpenMappingsBySlave(ctx context.Context, slaveName string) ([]Mapping, error) {
	return s.queryMappings(ctx, `
		SELECT id, master_ticket, slave_name, slave_ticket, symbol, direction, status, open_time, close_time
		FROM mappings
		WHERE slave_name = ? AND status = 'OPEN'
		ORDER BY open_time ASC`, slaveName)
}

func (s *SQLite) OpenMappings(ctx context.Context) ([]Mapping, error) {
	return s.queryMappings(ctx, `
		SELECT id, master_ticket, slave_name, slave_ticket, symbol, direction, status, open_time, close_time
		FROM mappings
		WHERE status = 'OPEN'
		ORDER BY open_time ASC`)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) queryMappings(ctx context.Context, query string, args ...any) ([]Mapping, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (Account, error) {
	var (
		a         Account
		typ       string
		symbolMap string
	)
	if err := row.Scan(&a.Name, &typ, &a.Path, &a.Enabled, &symbolMap, &a.Suffix, &a.SlippageTolerance); err != nil {
		return Account{}, err
	}
	a.Type = AccountType(typ)

	if err := json.Unmarshal([]byte(symbolMap), &a.SymbolMap); err != nil {
		return Account{}, fmt.Errorf("account %q: bad symbol map: %w", a.Name, err)
	}
	return a, nil
}

func scanMapping(row scanner) (Mapping, error) {
	var (
		m         Mapping
		status    string
		closeTime sql.NullTime
	)
	err := row.Scan(
		&m.ID,
		&m.MasterTicket,
		&m.SlaveName,
		&m.SlaveTicket,
		&m.Symbol,
		&m.Direction,
		&status,
		&m.OpenTime,
		&closeTime,
	)
	if err != nil {
		return Mapping{}, err
	}
	m.Status = MappingStatus(status)
	if closeTime.Valid {
		t := closeTime.Time
		m.CloseTime = &t
	}
	return m, nil
}
