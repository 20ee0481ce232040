package ports

import (
	"context"

	"github.com/jupiterclapton/cenackle/services/relation-service/internal/core/domain"
)

// --- INPUTS (Command Pattern) ---

// RelationCmd porte les paramètres communs aux transitions d'arêtes.
// Une struct plutôt que des positionnels : on pourra ajouter des champs
// optionnels sans casser les signatures.
type RelationCmd struct {
	ActorID  string
	TargetID string
	Reason   string // Optionnel, surtout utile pour Block/Mute
}

// --- PORTS PRIMAIRES (Driving) ---

// RelationshipService est la machine à états des arêtes du graphe.
// Chaque opération est atomique vis-à-vis du stockage et retourne soit
// l'arête résultante, soit une erreur métier à code stable.
type RelationshipService interface {
	Follow(ctx context.Context, cmd RelationCmd) (*domain.Relationship, error)
	Unfollow(ctx context.Context, cmd RelationCmd) (*domain.Relationship, error)
	Block(ctx context.Context, cmd RelationCmd) (*domain.Relationship, error)
	Unblock(ctx context.Context, cmd RelationCmd) (*domain.Relationship, error)
	Mute(ctx context.Context, cmd RelationCmd) (*domain.Relationship, error)
	Unmute(ctx context.Context, cmd RelationCmd) (*domain.Relationship, error)

	// AcceptFollowRequest promeut la REQUEST requester -> actor en FOLLOW,
	// en place (même arête, même raison).
	AcceptFollowRequest(ctx context.Context, actorID, requesterID string) (*domain.Relationship, error)
	// DenyFollowRequest supprime cette même REQUEST.
	DenyFollowRequest(ctx context.Context, actorID, requesterID string) (bool, error)
}

// AccessGuardian décide si un spectateur peut voir les données d'un sujet.
// Un refus n'est pas une erreur : l'erreur est réservée aux pannes
// d'infrastructure, que l'appelant retente ou remonte en 5xx.
type AccessGuardian interface {
	CanAccess(ctx context.Context, subject domain.Subject, viewer domain.Principal) (bool, error)
}

// StatsService agrège compteurs et drapeaux de relation d'un compte.
type StatsService interface {
	GetStats(ctx context.Context, subjectID string, viewer domain.Principal) (*domain.RelationshipStats, error)
}
