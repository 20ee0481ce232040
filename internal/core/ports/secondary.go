package ports

import (
	"context"
	"time"

	"github.com/jupiterclapton/cenackle/services/relation-service/internal/core/domain"
)

// --- PERSISTANCE (DB) ---

// RelationshipRepository est le port Driven vers la table des arêtes.
// Les implémentations traduisent les erreurs du driver en sentinelles du
// domaine (ErrRelationshipNotFound, ErrRelationshipExists) ; tout le reste
// remonte tel quel comme panne d'infrastructure.
type RelationshipRepository interface {
	// Get retourne l'arête exacte (from, to, type), ou ErrRelationshipNotFound.
	Get(ctx context.Context, fromID, toID string, t domain.RelationType) (*domain.Relationship, error)

	// ExistsAny vérifie s'il existe au moins une arête from -> to d'un des types donnés.
	ExistsAny(ctx context.Context, fromID, toID string, types ...domain.RelationType) (bool, error)

	// Create insère l'arête. La contrainte d'unicité du stockage est le
	// garde-fou ultime contre les courses : une violation devient ErrRelationshipExists.
	Create(ctx context.Context, rel *domain.Relationship) error

	// Delete supprime l'arête exacte, ou ErrRelationshipNotFound.
	Delete(ctx context.Context, fromID, toID string, t domain.RelationType) error

	// CreateBlock exécute en UNE transaction : purge des arêtes FOLLOW et
	// REQUEST dans les deux sens entre les deux comptes, puis insertion du BLOCK.
	CreateBlock(ctx context.Context, rel *domain.Relationship) error

	// Promote change le type de l'arête en place (REQUEST -> FOLLOW) en
	// rafraîchissant updated_at, et retourne l'arête résultante.
	Promote(ctx context.Context, fromID, toID string, from, to domain.RelationType) (*domain.Relationship, error)

	// Compteurs par direction.
	CountFrom(ctx context.Context, fromID string, t domain.RelationType) (int64, error)
	CountTo(ctx context.Context, toID string, t domain.RelationType) (int64, error)

	// CountMutuals compte les comptes X tels que id -> X et X -> id sont
	// tous deux des FOLLOW (self-join sur la table).
	CountMutuals(ctx context.Context, id string) (int64, error)

	// TypesBetween retourne l'ensemble des types d'arêtes sortantes from -> to.
	// Deux appels (un par sens) suffisent à dériver tous les drapeaux.
	TypesBetween(ctx context.Context, fromID, toID string) (map[domain.RelationType]bool, error)
}

// AccountDirectory résout un compte et sa visibilité.
// Retourne domain.ErrUserNotFound si le compte n'existe pas.
type AccountDirectory interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
}

// --- CACHE ---

// DecisionCache est le cache clé/valeur des décisions du Guardian.
// Cohérence assumée : expiration par TTL uniquement, pas d'invalidation.
type DecisionCache interface {
	// Get retourne (valeur, trouvé, erreur). Une clé absente n'est pas une erreur.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// --- MESSAGERIE (BROKER) ---

// EventPublisher notifie les autres services (feed, notification) qu'une
// relation a changé. Les publications sont best-effort : une mutation
// réussie n'échoue jamais parce que le broker est lent ou down.
type EventPublisher interface {
	PublishRelationChanged(ctx context.Context, action string, rel *domain.Relationship) error
}
