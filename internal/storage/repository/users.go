package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/predictor-portal/internal/lib/plan"
	"github.com/magabrotheeeer/predictor-portal/internal/models"
)

const userColumns = `id, email, name, plan_type, is_active, plan_end_time, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u           models.User
		planType    sql.NullString
		planEndTime sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &planType, &u.IsActive,
		&planEndTime, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if planType.Valid {
		t := plan.Type(planType.String)
		u.PlanType = &t
	}
	if planEndTime.Valid {
		end := planEndTime.Time.UTC()
		u.PlanEndTime = &end
	}
	return &u, nil
}

func nullPlanType(t *plan.Type) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*t), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// GetUser возвращает пользователя по его id.
func (s *Storage) GetUser(ctx context.Context, id string) (*models.User, error) {
	const op = "storage.GetUser"

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByEmail возвращает пользователя по email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// CreateUser сохраняет нового пользователя без плана.
func (s *Storage) CreateUser(ctx context.Context, u models.User) error {
	const op = "storage.CreateUser"

	query := `INSERT INTO users (id, email, name, plan_type, is_active, plan_end_time)
			  VALUES ($1, $2, $3, $4::plan_type, $5, $6)`
	if _, err := s.DB.ExecContext(ctx, query, u.ID, u.Email, u.Name,
		nullPlanType(u.PlanType), u.IsActive, nullTime(u.PlanEndTime)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// EnsureUser создаёт запись при первом визите и возвращает запись, найденную по email.
// Существующая запись с тем же email или id не изменяется.
func (s *Storage) EnsureUser(ctx context.Context, u models.User) (*models.User, error) {
	const op = "storage.EnsureUser"

	query := `INSERT INTO users (id, email, name)
			  VALUES ($1, $2, $3)
			  ON CONFLICT DO NOTHING`
	if _, err := s.DB.ExecContext(ctx, query, u.ID, u.Email, u.Name); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	stored, err := s.GetUserByEmail(ctx, u.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return stored, nil
}

// ListUsers возвращает всех пользователей, новые первыми.
func (s *Storage) ListUsers(ctx context.Context) ([]*models.User, error) {
	const op = "storage.ListUsers"

	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, id`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdatePlan записывает состояние плана пользователя и возвращает обновлённую запись.
func (s *Storage) UpdatePlan(ctx context.Context, id string, st plan.State) (*models.User, error) {
	const op = "storage.UpdatePlan"

	query := `UPDATE users
			  SET plan_type = $1::plan_type, is_active = $2, plan_end_time = $3, updated_at = now()
			  WHERE id = $4
			  RETURNING ` + userColumns
	u, err := scanUser(s.DB.QueryRowContext(ctx, query,
		nullPlanType(st.PlanType), st.IsActive, nullTime(st.PlanEndTime), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// ExpireDue одним запросом переводит в Expired всех активных пользователей,
// у которых plan_end_time не позже now, и возвращает затронутые записи.
func (s *Storage) ExpireDue(ctx context.Context, now time.Time) ([]*models.User, error) {
	const op = "storage.ExpireDue"

	query := `UPDATE users
			  SET plan_type = 'Expired', is_active = false, plan_end_time = NULL, updated_at = now()
			  WHERE is_active = true AND plan_end_time <= $1
			  RETURNING ` + userColumns
	rows, err := s.DB.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
