package database

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/arec-energy/pumpstream/internal/aggregation"
	"github.com/arec-energy/pumpstream/internal/models"
)

// Timestamps are stored as unix nanoseconds so range predicates compare
// integers rather than driver-formatted strings.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS pump_readings (
    time                  INTEGER NOT NULL,
    adc_current           REAL,
    adc_voltage           REAL,
    raw_current           REAL,
    raw_voltage           REAL,
    filtered_current      REAL,
    filtered_voltage      REAL,
    flow                  REAL,
    power                 REAL,
    accumulated_energy_wh REAL,
    total_water_volume    REAL,
    filter_initialized    INTEGER
);
CREATE INDEX IF NOT EXISTS pump_readings_time_idx ON pump_readings (time);
`

// SQLiteRepo implements TimeSeriesRepository on a local SQLite file.
type SQLiteRepo struct {
	db  *sql.DB
	loc *time.Location
}

// NewSQLiteRepo opens (creating if needed) the database at path.
func NewSQLiteRepo(path string, loc *time.Location) (*SQLiteRepo, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, storeErr("connect", err)
	}

	// SQLite works best with a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, storeErr("connect", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, storeErr("migrate", err)
	}

	if loc == nil {
		loc = time.UTC
	}
	return &SQLiteRepo{db: db, loc: loc}, nil
}

func (s *SQLiteRepo) Insert(ctx context.Context, reading models.SensorReading) error {
	args := append([]any{reading.Time.UnixNano()}, fieldArgs(reading)...)
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO pump_readings (`+readingColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, args...)
	return storeErr("insert", err)
}

func (s *SQLiteRepo) FindRecent(ctx context.Context, limit int) ([]models.SensorReading, error) {
	if limit <= 0 {
		return []models.SensorReading{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT `+readingColumns+`
        FROM pump_readings
        ORDER BY time DESC
        LIMIT ?
    `, limit)
	if err != nil {
		return nil, storeErr("find recent", err)
	}
	out, err := scanSQLiteRows(rows)
	return out, storeErr("find recent", err)
}

func (s *SQLiteRepo) FindRange(ctx context.Context, start, end time.Time) ([]models.SensorReading, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT `+readingColumns+`
        FROM pump_readings
        WHERE time >= ? AND time < ?
        ORDER BY time ASC
    `, start.UnixNano(), end.UnixNano())
	if err != nil {
		return nil, storeErr("find range", err)
	}
	out, err := scanSQLiteRows(rows)
	return out, storeErr("find range", err)
}

func (s *SQLiteRepo) Aggregate(
	ctx context.Context,
	start, end time.Time,
	granularity aggregation.Granularity,
) ([]models.AggregateBucket, error) {
	return aggregateRange(ctx, s.FindRange, start, end, granularity, s.loc)
}

func (s *SQLiteRepo) Close() error {
	return s.db.Close()
}

func scanSQLiteRows(rows *sql.Rows) ([]models.SensorReading, error) {
	defer rows.Close()

	results := []models.SensorReading{}
	for rows.Next() {
		var (
			nanos int64
			r     models.SensorReading
			n     nullableFields
		)
		if err := rows.Scan(append([]any{&nanos}, n.dest()...)...); err != nil {
			return nil, err
		}
		r.Time = time.Unix(0, nanos).UTC()
		n.apply(&r)
		results = append(results, r)
	}
	return results, rows.Err()
}

var _ TimeSeriesRepository = (*SQLiteRepo)(nil)
