package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/magabrotheeeer/session-scheduler/internal/models"
)

const userColumns = `uid, name, COALESCE(email, ''), phone, source, role`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var u models.User
	err := row.Scan(&u.UUID, &u.Name, &u.Email, &u.Phone, &u.Source, &u.Role)
	return u, err
}

// CreateUser сохраняет пользователя и возвращает его UID.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.CreateUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var email any
	if user.Email != "" {
		email = strings.ToLower(user.Email)
	}
	role := user.Role
	if role == "" {
		role = "user"
	}
	query := `INSERT INTO users (name, email, phone, source, role)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING uid`
	var id string
	if err := s.DB.QueryRowContext(ctx, query,
		user.Name, email, user.Phone, user.Source, role).Scan(&id); err != nil {
		return "", fmt.Errorf("%s: %w", op, mapError(err))
	}
	return id, nil
}

// GetUserByEmail возвращает пользователя по email без учёта регистра.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE lower(email) = lower($1)`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return &u, nil
}

// GetUsersByIDs возвращает найденных пользователей, отсутствующие id пропускаются.
func (s *Storage) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	const op = "storage.GetUsersByIDs"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE uid::text = ANY($1)
			  ORDER BY uid`
	return s.queryUsers(ctx, op, query, pq.Array(ids))
}

// GetUsersByEmails возвращает пользователей с указанными email.
func (s *Storage) GetUsersByEmails(ctx context.Context, emails []string) ([]models.User, error) {
	const op = "storage.GetUsersByEmails"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	if len(emails) == 0 {
		return nil, nil
	}

	lowered := make([]string, 0, len(emails))
	for _, e := range emails {
		lowered = append(lowered, strings.ToLower(e))
	}
	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE lower(email) = ANY($1)
			  ORDER BY uid`
	return s.queryUsers(ctx, op, query, pq.Array(lowered))
}

func (s *Storage) queryUsers(ctx context.Context, op, query string, args ...any) ([]models.User, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.User
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
