package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jupiterclapton/cenackle/services/relation-service/internal/core/domain"
)

// PostgresAccountDirectory lit la projection des comptes (alimentée par
// l'identity service). Lecture seule : ce service ne crée jamais de compte.
type PostgresAccountDirectory struct {
	db *pgxpool.Pool
}

func NewPostgresAccountDirectory(pool *pgxpool.Pool) *PostgresAccountDirectory {
	return &PostgresAccountDirectory{db: pool}
}

func (d *PostgresAccountDirectory) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	q := `SELECT id, username, visibility, created_at, updated_at FROM accounts WHERE id = $1`

	var (
		acc        domain.Account
		visibility string
		createdAt  time.Time
		updatedAt  time.Time
	)
	err := d.db.QueryRow(ctx, q, id).Scan(&acc.ID, &acc.Username, &visibility, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound // Traduction technique -> Domaine
		}
		return nil, fmt.Errorf("db: get account: %w", err)
	}

	acc.Visibility = domain.Visibility(visibility)
	acc.CreatedAt = createdAt
	acc.UpdatedAt = updatedAt
	return &acc, nil
}
