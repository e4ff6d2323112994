package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserService looks up dashboard users. Password hashing and verification
// live in the application layer; core only stores the hash.
type UserService interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByID(ctx context.Context, userID int) (*User, error)
	Create(ctx context.Context, username, name, passwordHash, role string) (*User, error)
}

type userService struct {
	pool *pgxpool.Pool
}

func NewUserService(pool *pgxpool.Pool) UserService {
	return &userService{pool: pool}
}

const userColumns = "id, username, name, password_hash, role, is_active, created_at"

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Name, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *userService) GetByUsername(ctx context.Context, username string) (*User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = $1", username))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFoundf("user %q not found", username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user %q: %w", username, err)
	}
	return u, nil
}

func (s *userService) GetByID(ctx context.Context, userID int) (*User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFoundf("user %d not found", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user %d: %w", userID, err)
	}
	return u, nil
}

func (s *userService) Create(ctx context.Context, username, name, passwordHash, role string) (*User, error) {
	if username == "" || passwordHash == "" {
		return nil, Validationf("username and password are required")
	}
	if role != "ADMIN" && role != "STAFF" {
		return nil, Validationf("invalid role %q", role)
	}

	var exists bool
	if err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)", username,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if exists {
		return nil, Validationf("username %q already taken", username)
	}

	u, err := scanUser(s.pool.QueryRow(ctx, `
		INSERT INTO users (username, name, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING `+userColumns,
		username, name, passwordHash, role,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}
