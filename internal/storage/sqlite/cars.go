package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/region23/testdrive/internal/storage"
	"github.com/region23/testdrive/internal/storage/models"
	"github.com/region23/testdrive/pkg/metrics"
)

var carColumns = []string{"id", "model", "description"}

// GetCar получает машину по ID
func (s *SQLiteStorage) GetCar(ctx context.Context, id int64) (*models.Car, error) {
	query, args, err := builder.Select(carColumns...).
		From("cars").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build car query: %w", err)
	}

	car := &models.Car{}
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&car.ID, &car.Model, &car.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get car: %w", err)
	}

	return car, nil
}

// ListCars возвращает все машины в порядке добавления
func (s *SQLiteStorage) ListCars(ctx context.Context) ([]*models.Car, error) {
	query, args, err := builder.Select(carColumns...).
		From("cars").
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build cars query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cars: %w", err)
	}
	defer rows.Close()

	var cars []*models.Car
	for rows.Next() {
		car := &models.Car{}
		if err := rows.Scan(&car.ID, &car.Model, &car.Description); err != nil {
			return nil, fmt.Errorf("failed to scan car: %w", err)
		}
		cars = append(cars, car)
	}

	return cars, rows.Err()
}

// CreateCar сохраняет новую машину и заполняет ее ID
func (s *SQLiteStorage) CreateCar(ctx context.Context, car *models.Car) error {
	query, args, err := builder.Insert("cars").
		Columns("model", "description").
		Values(car.Model, car.Description).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build car insert: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	metrics.RecordDatabaseOperation("insert", "cars", err)
	if err != nil {
		return fmt.Errorf("failed to create car: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read car id: %w", err)
	}
	car.ID = id

	return nil
}

// UpdateCar обновляет модель и описание машины
func (s *SQLiteStorage) UpdateCar(ctx context.Context, car *models.Car) error {
	query, args, err := builder.Update("cars").
		Set("model", car.Model).
		Set("description", car.Description).
		Where(sq.Eq{"id": car.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build car update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	metrics.RecordDatabaseOperation("update", "cars", err)
	if err != nil {
		return fmt.Errorf("failed to update car: %w", err)
	}

	return requireAffected(res)
}

// DeleteCar удаляет машину; машина с бронированиями не удаляется
func (s *SQLiteStorage) DeleteCar(ctx context.Context, id int64) error {
	query, args, err := builder.Delete("cars").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build car delete: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	metrics.RecordDatabaseOperation("delete", "cars", err)
	if err != nil {
		if isForeignKeyViolation(err) {
			return storage.ErrReferenced
		}
		return fmt.Errorf("failed to delete car: %w", err)
	}

	return requireAffected(res)
}

// requireAffected возвращает ErrNotFound, если запрос не затронул ни одной строки
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
