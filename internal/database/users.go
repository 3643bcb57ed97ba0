package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, email, password_hash, full_name, role, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	const sql = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(q.db.QueryRow(ctx, sql, email))
}

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	const sql = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(q.db.QueryRow(ctx, sql, id))
}

type CreateUserParams struct {
	Email        string
	PasswordHash string
	FullName     string
	Role         string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	const sql = `INSERT INTO users (email, password_hash, full_name, role)
	VALUES ($1, $2, $3, $4)
	RETURNING ` + userColumns
	return scanUser(q.db.QueryRow(ctx, sql, arg.Email, arg.PasswordHash, arg.FullName, arg.Role))
}

func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	const sql = `SELECT ` + userColumns + ` FROM users ORDER BY created_at`
	rows, err := q.db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (q *Queries) SetUserActive(ctx context.Context, id uuid.UUID, isActive bool) (User, error) {
	const sql = `UPDATE users SET is_active = $2, updated_at = now() WHERE id = $1
	RETURNING ` + userColumns
	return scanUser(q.db.QueryRow(ctx, sql, id, isActive))
}
