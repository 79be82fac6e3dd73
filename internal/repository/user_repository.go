package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_shop/internal/domain"
)

type UserStore struct {
	r *Repository
}

const userColumns = `id, email, name, password_hash, is_active, created_at, updated_at`

func (s *UserStore) get(ctx context.Context, where string, arg any) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where + ` = $1`

	u := &domain.User{}
	err := s.r.conn(ctx).QueryRowContext(ctx, query, arg).Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.PasswordHash,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) || isMalformedID(err) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user by %s: %w", where, err)
	}
	return u, nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return s.get(ctx, "id", id)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.get(ctx, "email", email)
}

func (s *UserStore) Create(ctx context.Context, u *domain.User) error {
	query := `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.r.conn(ctx).ExecContext(ctx, query,
		u.ID,
		u.Email,
		u.Name,
		u.PasswordHash,
		u.IsActive,
		u.CreatedAt.UTC(),
		u.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *UserStore) Update(ctx context.Context, u *domain.User) error {
	query := `UPDATE users SET email = $1, name = $2, password_hash = $3, is_active = $4, updated_at = $5
	          WHERE id = $6`

	res, err := s.r.conn(ctx).ExecContext(ctx, query,
		u.Email,
		u.Name,
		u.PasswordHash,
		u.IsActive,
		u.UpdatedAt.UTC(),
		u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		if isMalformedID(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("update user: %w", err)
	}
	return expectAffected(res, ErrUserNotFound)
}

func (s *UserStore) Delete(ctx context.Context, id string) error {
	res, err := s.r.conn(ctx).ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if isMalformedID(err) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return expectAffected(res, ErrUserNotFound)
}
