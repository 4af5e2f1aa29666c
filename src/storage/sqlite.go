package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"pricelink/src/helpers"
	"pricelink/src/logger"
	"pricelink/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type SQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*SQLiteDB, error) {
	return &SQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Initialize() error {
	dsn := d.Config.Storage.DBPath

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return helpers.NewDatabaseError("failed to open sqlite database", err)
	}

	if err := db.Ping(); err != nil {
		return helpers.NewDatabaseError("sqlite database unreachable", err)
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) createTables() error {
	// Key and symbol tables survive restarts, so create-if-missing only.
	queries := []string{
		`CREATE TABLE IF NOT EXISTS api_keys (
			key TEXT PRIMARY KEY,
			plan TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			expires_at TIMESTAMP
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

func (d *SQLiteDB) GetAPIKey(key string) (*models.MAPIKeyRecord, error) {
	row := d.DB.QueryRow("SELECT key, plan, status, expires_at FROM api_keys WHERE key = ?", key)

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

func (d *SQLiteDB) ResolveSymbolIDs(symbols []string) (map[string]string, error) {
	out := make(map[string]string, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}

	placeholders := strings.Repeat("?,", len(symbols))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, len(symbols))
	for i, s := range symbols {
		args[i] = s
	}

	rows, err := d.DB.Query(
		fmt.Sprintf("SELECT symbol, provider_id FROM symbols WHERE symbol IN (%s)", placeholders),
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

func (d *SQLiteDB) ListSymbols() ([]string, error) {
	return d.listColumn("SELECT symbol FROM symbols ORDER BY symbol")
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) ListFiats() ([]string, error) {
	return d.listColumn("SELECT code FROM fiats ORDER BY code")
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) listColumn(query string) ([]string, error) {
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

func (d *SQLiteDB) SeedDev() error {
	for _, k := range devAPIKeys {
		if _, err := d.DB.Exec(
			"INSERT OR IGNORE INTO api_keys (key, plan, status) VALUES (?, ?, ?)",
			k.Key, k.Plan, k.Status,
		); err != nil {
			return err
		}
	}

	for symbol, id := range defaultSymbolIDs {
		if _, err := d.DB.Exec(
			"INSERT OR IGNORE INTO symbols (symbol, provider_id) VALUES (?, ?)",
			symbol, id,
		); err != nil {
			return err
		}
	}

	for _, code := range defaultFiats {
		if _, err := d.DB.Exec("INSERT OR IGNORE INTO fiats (code) VALUES (?)", code); err != nil {
			return err
		}
	}

	d.Logger.Info("Seeded %d dev keys, %d symbols, %d fiats", len(devAPIKeys), len(defaultSymbolIDs), len(defaultFiats))
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Close() error {
	if d.DB == nil {
		return nil
	}
	return d.DB.Close()
}
