package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jupiterclapton/cenackle/services/relation-service/internal/core/domain"
)

// DTO interne : tampon entre la table et le domaine pour gérer les NULLs.
type sqlRelationship struct {
	FromID    string
	ToID      string
	Type      string
	Reason    *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

const relationshipColumns = `from_id, to_id, type, reason, created_at, updated_at`

// PostgresRelationshipRepo implémente ports.RelationshipRepository sur la
// table relationships, clé primaire composite (from_id, to_id, type).
type PostgresRelationshipRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRelationshipRepo(pool *pgxpool.Pool) *PostgresRelationshipRepo {
	return &PostgresRelationshipRepo{db: pool}
}

// EnsureSchema crée la table et ses index (idempotent).
// La clé composite EST l'invariant "au plus une arête par (from, to, type)".
func (r *PostgresRelationshipRepo) EnsureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS relationships (
			from_id    TEXT        NOT NULL,
			to_id      TEXT        NOT NULL,
			type       TEXT        NOT NULL,
			reason     TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (from_id, to_id, type)
		)`,
		// Les compteurs entrants (followers, blockers...) scannent par to_id.
		`CREATE INDEX IF NOT EXISTS idx_relationships_to_type ON relationships (to_id, type)`,
	}

	for _, q := range ddl {
		if _, err := r.db.Exec(ctx, q); err != nil {
			return fmt.Errorf("db: ensure schema: %w", err)
		}
	}
	return nil
}

func (r *PostgresRelationshipRepo) Get(ctx context.Context, fromID, toID string, t domain.RelationType) (*domain.Relationship, error) {
	q := `SELECT ` + relationshipColumns + ` FROM relationships WHERE from_id = $1 AND to_id = $2 AND type = $3`

	rel, err := scanRelationship(r.db.QueryRow(ctx, q, fromID, toID, string(t)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRelationshipNotFound
		}
		return nil, fmt.Errorf("db: get relationship: %w", err)
	}
	return rel, nil
}

func (r *PostgresRelationshipRepo) ExistsAny(ctx context.Context, fromID, toID string, types ...domain.RelationType) (bool, error) {
	q := `SELECT EXISTS (
		SELECT 1 FROM relationships
		WHERE from_id = $1 AND to_id = $2 AND type = ANY($3)
	)`

	var exists bool
	if err := r.db.QueryRow(ctx, q, fromID, toID, typeStrings(types)).Scan(&exists); err != nil {
		return false, fmt.Errorf("db: exists relationship: %w", err)
	}
	return exists, nil
}

func (r *PostgresRelationshipRepo) Create(ctx context.Context, rel *domain.Relationship) error {
	q := `
		INSERT INTO relationships (from_id, to_id, type, reason, created_at, updated_at)
		VALUES (@from_id, @to_id, @type, @reason, @created_at, @updated_at)
	`

	if _, err := r.db.Exec(ctx, q, relationshipArgs(rel)); err != nil {
		return handleError(err)
	}
	return nil
}

func (r *PostgresRelationshipRepo) Delete(ctx context.Context, fromID, toID string, t domain.RelationType) error {
	q := `DELETE FROM relationships WHERE from_id = $1 AND to_id = $2 AND type = $3`

	tag, err := r.db.Exec(ctx, q, fromID, toID, string(t))
	if err != nil {
		return fmt.Errorf("db: delete relationship: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRelationshipNotFound
	}
	return nil
}

// CreateBlock purge FOLLOW/REQUEST dans les deux sens puis insère le BLOCK,
// le tout dans UNE transaction : pas de fenêtre où ni l'ancien ni le nouvel
// état n'existe si le process meurt au milieu.
func (r *PostgresRelationshipRepo) CreateBlock(ctx context.Context, rel *domain.Relationship) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("db: begin block tx: %w", err)
	}
	defer tx.Rollback(ctx)

	purge := `
		DELETE FROM relationships
		WHERE ((from_id = $1 AND to_id = $2) OR (from_id = $2 AND to_id = $1))
		  AND type = ANY($3)
	`
	followTypes := typeStrings([]domain.RelationType{domain.RelationFollow, domain.RelationRequest})
	if _, err := tx.Exec(ctx, purge, rel.FromID, rel.ToID, followTypes); err != nil {
		return fmt.Errorf("db: purge follow edges: %w", err)
	}

	insert := `
		INSERT INTO relationships (from_id, to_id, type, reason, created_at, updated_at)
		VALUES (@from_id, @to_id, @type, @reason, @created_at, @updated_at)
	`
	if _, err := tx.Exec(ctx, insert, relationshipArgs(rel)); err != nil {
		return handleError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("db: commit block tx: %w", err)
	}
	return nil
}

// Promote change le type en place (REQUEST -> FOLLOW) : mêmes extrémités,
// même raison, updated_at rafraîchi.
func (r *PostgresRelationshipRepo) Promote(ctx context.Context, fromID, toID string, from, to domain.RelationType) (*domain.Relationship, error) {
	q := `
		UPDATE relationships
		SET type = $1, updated_at = $2
		WHERE from_id = $3 AND to_id = $4 AND type = $5
		RETURNING ` + relationshipColumns

	rel, err := scanRelationship(r.db.QueryRow(ctx, q, string(to), time.Now().UTC(), fromID, toID, string(from)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRelationshipNotFound
		}
		return nil, handleError(err)
	}
	return rel, nil
}

func (r *PostgresRelationshipRepo) CountFrom(ctx context.Context, fromID string, t domain.RelationType) (int64, error) {
	q := `SELECT COUNT(*) FROM relationships WHERE from_id = $1 AND type = $2`

	var n int64
	if err := r.db.QueryRow(ctx, q, fromID, string(t)).Scan(&n); err != nil {
		return 0, fmt.Errorf("db: count from: %w", err)
	}
	return n, nil
}

func (r *PostgresRelationshipRepo) CountTo(ctx context.Context, toID string, t domain.RelationType) (int64, error) {
	q := `SELECT COUNT(*) FROM relationships WHERE to_id = $1 AND type = $2`

	var n int64
	if err := r.db.QueryRow(ctx, q, toID, string(t)).Scan(&n); err != nil {
		return 0, fmt.Errorf("db: count to: %w", err)
	}
	return n, nil
}

// CountMutuals : self-join sur la table, chaque arête sortante FOLLOW
// appariée à son inverse.
func (r *PostgresRelationshipRepo) CountMutuals(ctx context.Context, id string) (int64, error) {
	q := `
		SELECT COUNT(*)
		FROM relationships a
		JOIN relationships b
		  ON b.from_id = a.to_id AND b.to_id = a.from_id AND b.type = a.type
		WHERE a.from_id = $1 AND a.type = $2
	`

	var n int64
	if err := r.db.QueryRow(ctx, q, id, string(domain.RelationFollow)).Scan(&n); err != nil {
		return 0, fmt.Errorf("db: count mutuals: %w", err)
	}
	return n, nil
}

func (r *PostgresRelationshipRepo) TypesBetween(ctx context.Context, fromID, toID string) (map[domain.RelationType]bool, error) {
	q := `SELECT type FROM relationships WHERE from_id = $1 AND to_id = $2`

	rows, err := r.db.Query(ctx, q, fromID, toID)
	if err != nil {
		return nil, fmt.Errorf("db: types between: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.RelationType]bool, 4)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("db: scan type: %w", err)
		}
		out[domain.RelationType(t)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: types between: %w", err)
	}
	return out, nil
}

// --- HELPERS ---

func relationshipArgs(rel *domain.Relationship) pgx.NamedArgs {
	// reason = NULL quand absent, pour garder la colonne propre
	var reason any
	if rel.Reason != "" {
		reason = rel.Reason
	}
	return pgx.NamedArgs{
		"from_id":    rel.FromID,
		"to_id":      rel.ToID,
		"type":       string(rel.Type),
		"reason":     reason,
		"created_at": rel.CreatedAt,
		"updated_at": rel.UpdatedAt,
	}
}

func scanRelationship(row pgx.Row) (*domain.Relationship, error) {
	var dto sqlRelationship
	if err := row.Scan(&dto.FromID, &dto.ToID, &dto.Type, &dto.Reason, &dto.CreatedAt, &dto.UpdatedAt); err != nil {
		return nil, err
	}

	rel := &domain.Relationship{
		FromID:    dto.FromID,
		ToID:      dto.ToID,
		Type:      domain.RelationType(dto.Type),
		CreatedAt: dto.CreatedAt,
		UpdatedAt: dto.UpdatedAt,
	}
	if dto.Reason != nil {
		rel.Reason = *dto.Reason
	}
	return rel, nil
}

func typeStrings(types []domain.RelationType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

// handleError traduit les codes PostgreSQL en sentinelles du domaine.
func handleError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 23505 = unique_violation : l'arête existait déjà (course perdue)
		if pgErr.Code == "23505" {
			return domain.ErrRelationshipExists
		}
	}
	return err
}
