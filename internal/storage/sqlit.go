package storage

import (
	"database/sql"
	"fmt"
	"time"

	// Register sqlite3 driver
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

type DB interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	Close() error
}

type Store struct{ db DB }

func OpenSQLite(dsn string) (DB, error) {
	return sql.Open("sqlite3", dsn)
}

func InitSchema(db DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS runs(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id INTEGER, symbol TEXT, amount TEXT, start_date TEXT,
		horizon_days INTEGER, scenarios INTEGER, seed INTEGER,
		final_value TEXT, median_value TEXT, lower_value TEXT,
		created_at INTEGER
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS runs_chat_created ON runs(chat_id, created_at)`)
	return err
}

func NewStore(db DB) *Store { return &Store{db: db} }

// RunRecord is one completed projection. Seed is nil when the run was not
// reproducible.
type RunRecord struct {
	ChatID      int64
	Symbol      string
	Amount      decimal.Decimal
	StartDate   time.Time
	HorizonDays int
	Scenarios   int
	Seed        *int64
	FinalValue  decimal.Decimal
	MedianValue decimal.Decimal
	LowerValue  decimal.Decimal
	CreatedAt   time.Time
}

func (s *Store) SaveRun(r RunRecord) error {
	var seed sql.NullInt64
	if r.Seed != nil {
		seed = sql.NullInt64{Int64: *r.Seed, Valid: true}
	}
	_, err := s.db.Exec(`INSERT INTO runs(chat_id,symbol,amount,start_date,horizon_days,scenarios,seed,final_value,median_value,lower_value,created_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		r.ChatID, r.Symbol, r.Amount.String(), r.StartDate.Format("2006-01-02"),
		r.HorizonDays, r.Scenarios, seed,
		r.FinalValue.String(), r.MedianValue.String(), r.LowerValue.String(),
		r.CreatedAt.UnixNano())
	return err
}

// RecentRuns returns up to limit runs for chatID, newest first.
func (s *Store) RecentRuns(chatID int64, limit int) ([]RunRecord, error) {
	rows, err := s.db.Query(`SELECT chat_id,symbol,amount,start_date,horizon_days,scenarios,seed,final_value,median_value,lower_value,created_at
		FROM runs WHERE chat_id=? ORDER BY created_at DESC, id DESC LIMIT ?`,
		chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var amount, final, median, low, start string
		var seed sql.NullInt64
		var created int64
		if err := rows.Scan(&r.ChatID, &r.Symbol, &amount, &start, &r.HorizonDays, &r.Scenarios, &seed, &final, &median, &low, &created); err != nil {
			return nil, err
		}
		if r.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("run amount %q: %w", amount, err)
		}
		if r.FinalValue, err = decimal.NewFromString(final); err != nil {
			return nil, fmt.Errorf("run final value %q: %w", final, err)
		}
		if r.MedianValue, err = decimal.NewFromString(median); err != nil {
			return nil, fmt.Errorf("run median value %q: %w", median, err)
		}
		if r.LowerValue, err = decimal.NewFromString(low); err != nil {
			return nil, fmt.Errorf("run lower value %q: %w", low, err)
		}
		if r.StartDate, err = time.Parse("2006-01-02", start); err != nil {
			return nil, fmt.Errorf("run start date %q: %w", start, err)
		}
		if seed.Valid {
			v := seed.Int64
			r.Seed = &v
		}
		r.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
