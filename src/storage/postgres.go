package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"pricelink/src/helpers"
	"pricelink/src/logger"
	"pricelink/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	return &PostgresDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	db, err := sql.Open("postgres", d.Config.Storage.DBConnectionString)
	if err != nil {
		return helpers.NewDatabaseError("failed to open postgres database", err)
	}

	if err := db.Ping(); err != nil {
		return helpers.NewDatabaseError("postgres database unreachable", err)
	}

	d.DB = db
	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS api_keys (
			key TEXT PRIMARY KEY,
			plan TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			expires_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS symbols (
			symbol TEXT PRIMARY KEY,
			provider_id TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS fiats (
			code TEXT PRIMARY KEY
		);`,
	}

	for _, q := range queries {
		if _, err := d.DB.Exec(q); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) GetAPIKey(key string) (*models.MAPIKeyRecord, error) {
	row := d.DB.QueryRow("SELECT key, plan, status, expires_at FROM api_keys WHERE key = $1", key)

	var rec models.MAPIKeyRecord
	var expires sql.NullTime
	if err := row.Scan(&rec.Key, &rec.Plan, &rec.Status, &expires); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if expires.Valid {
		rec.ExpiresAt = &expires.Time
	}
	return &rec, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) ResolveSymbolIDs(symbols []string) (map[string]string, error) {
	out := make(map[string]string, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(symbols))
	args := make([]interface{}, len(symbols))
	for i, s := range symbols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = s
	}

	rows, err := d.DB.Query(
		fmt.Sprintf("SELECT symbol, provider_id FROM symbols WHERE symbol IN (%s)", strings.Join(placeholders, ",")),
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var symbol, id string
		if err := rows.Scan(&symbol, &id); err != nil {
			return nil, err
		}
		out[symbol] = id
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) ListSymbols() ([]string, error) {
	return d.listColumn("SELECT symbol FROM symbols ORDER BY symbol")
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) ListFiats() ([]string, error) {
	return d.listColumn("SELECT code FROM fiats ORDER BY code")
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) listColumn(query string) ([]string, error) {
	rows, err := d.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SeedDev() error {
	for _, k := range devAPIKeys {
		if _, err := d.DB.Exec(
			"INSERT INTO api_keys (key, plan, status) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING",
			k.Key, k.Plan, k.Status,
		); err != nil {
			return err
		}
	}

	for symbol, id := range defaultSymbolIDs {
		if _, err := d.DB.Exec(
			"INSERT INTO symbols (symbol, provider_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			symbol, id,
		); err != nil {
			return err
		}
	}

	for _, code := range defaultFiats {
		if _, err := d.DB.Exec("INSERT INTO fiats (code) VALUES ($1) ON CONFLICT DO NOTHING", code); err != nil {
			return err
		}
	}

	d.Logger.Info("Seeded %d dev keys, %d symbols, %d fiats", len(devAPIKeys), len(defaultSymbolIDs), len(defaultFiats))
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB == nil {
		return nil
	}
	return d.DB.Close()
}
