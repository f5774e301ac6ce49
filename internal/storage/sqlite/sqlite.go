package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/region23/testdrive/internal/storage"
	"github.com/region23/testdrive/internal/storage/models"
)

// builder строит запросы с плейсхолдерами "?"
var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

var _ storage.Storage = (*SQLiteStorage)(nil)

// SQLiteStorage реализует интерфейс Storage для SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// Options дополнительные параметры подключения
type Options struct {
	BusyTimeoutMs int
	SeedDemoCars  bool
}

// New создает новое подключение к SQLite базе данных
func New(dbPath string) (*SQLiteStorage, error) {
	return NewWithOptions(dbPath, Options{BusyTimeoutMs: 5000})
}

// NewWithOptions создает подключение с заданными параметрами
func NewWithOptions(dbPath string, opts Options) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", buildDSN(dbPath, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite поддерживает только одно write-подключение; для :memory: это
	// еще и единственный способ видеть одну и ту же базу
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStorage{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	if opts.SeedDemoCars {
		if err := s.seedDemoCars(context.Background()); err != nil {
			db.Close()
			return nil, fmt.Errorf("seed failed: %w", err)
		}
	}

	return s, nil
}

// buildDSN добавляет pragma к пути, чтобы они применялись к каждому соединению
func buildDSN(dbPath string, opts Options) string {
	pragmas := []string{"_pragma=foreign_keys(1)"}
	if opts.BusyTimeoutMs > 0 {
		pragmas = append(pragmas, fmt.Sprintf("_pragma=busy_timeout(%d)", opts.BusyTimeoutMs))
	}
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + strings.Join(pragmas, "&")
}

// migrate выполняет миграции базы данных
func (s *SQLiteStorage) migrate() error {
	// WAL для файловой базы; для :memory: SQLite молча оставляет режим memory
	if _, err := s.db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return fmt.Errorf("failed to set WAL mode: %w", err)
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS cars (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			model TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			telegram_id INTEGER UNIQUE NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			username TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			car_id INTEGER NOT NULL,
			slot_start INTEGER NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('CONFIRMED', 'CANCELED')),
			created_at INTEGER NOT NULL,
			FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE,
			FOREIGN KEY(car_id) REFERENCES cars(id) ON DELETE RESTRICT
		)`,
		// Не более одного подтвержденного бронирования на машину и час
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_bookings_car_slot_confirmed
			ON bookings(car_id, slot_start) WHERE status = 'CONFIRMED'`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_user_status ON bookings(user_id, status, slot_start)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}

	return nil
}

// seedDemoCars заполняет пустую таблицу машин демонстрационным парком
func (s *SQLiteStorage) seedDemoCars(ctx context.Context) error {
	cars, err := s.ListCars(ctx)
	if err != nil {
		return err
	}
	if len(cars) > 0 {
		return nil
	}

	demo := []*models.Car{
		{Model: "Toyota Camry", Description: "Comfortable mid-size sedan, 2.5L hybrid."},
		{Model: "Tesla Model 3", Description: "Electric sedan, long range."},
		{Model: "BMW X5", Description: "Premium SUV with all-wheel drive."},
	}
	for _, car := range demo {
		if err := s.CreateCar(ctx, car); err != nil {
			return err
		}
	}
	return nil
}

// Close закрывает подключение к базе данных
func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping проверяет подключение к базе данных
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
