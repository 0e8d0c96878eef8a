package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/user"
	"github.com/kerjalabs/attendance-backend-go/internal/pkg/database"
)

const userColumns = `id, workplace_id, name, email, role, shift_id, active, created_at, updated_at`

type userRepositoryImpl struct {
	db database.Querier
}

func NewUserRepository(db database.Querier) user.UserRepository {
	return &userRepositoryImpl{db: db}
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID, &u.WorkplaceID, &u.Name, &u.Email, &u.Role, &u.ShiftID, &u.Active,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

// GetByID implements user.UserRepository.
func (r *userRepositoryImpl) GetByID(ctx context.Context, id string) (user.User, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
	`

	u, err := scanUser(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrUserNotFound
		}
		return user.User{}, fmt.Errorf("failed to get user: %w", err)
	}

	return u, nil
}

// ListByWorkplace implements user.UserRepository.
func (r *userRepositoryImpl) ListByWorkplace(ctx context.Context, workplaceID string) ([]user.User, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE workplace_id = $1
		  AND active = TRUE
		ORDER BY name ASC
	`

	rows, err := q.Query(ctx, query, workplaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workplace users: %w", err)
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}

	return users, nil
}

// ListByWorkplaceAndRole implements user.UserRepository.
func (r *userRepositoryImpl) ListByWorkplaceAndRole(ctx context.Context, workplaceID string, role user.Role) ([]user.User, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE workplace_id = $1
		  AND role = $2
		  AND active = TRUE
		ORDER BY name ASC
	`

	rows, err := q.Query(ctx, query, workplaceID, role)
	if err != nil {
		return nil, fmt.Errorf("failed to query users by role: %w", err)
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}

	return users, nil
}
