package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jupiterclapton/cenackle/services/relation-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/relation-service/internal/core/ports"
)

// DefaultDecisionTTL est la fenêtre d'obsolescence acceptée pour une décision.
// Courte exprès : un blocage fraîchement posé peut rester invisible au plus
// pendant cette durée.
const DefaultDecisionTTL = 5 * time.Second

const (
	anonymousCacheID = "anonymous"
	allowValue       = "1"
	denyValue        = "0"
)

// Guardian décide, pour chaque donnée appartenant à un compte, si un
// spectateur donné a le droit de la voir. Fonction pure de l'état courant du
// graphe : sa seule écriture est la mise en cache de la décision.
type Guardian struct {
	accounts  ports.AccountDirectory
	relations ports.RelationshipRepository
	cache     ports.DecisionCache
	ttl       time.Duration
}

func NewGuardian(accounts ports.AccountDirectory, relations ports.RelationshipRepository, cache ports.DecisionCache, ttl time.Duration) *Guardian {
	if ttl <= 0 {
		ttl = DefaultDecisionTTL
	}
	return &Guardian{
		accounts:  accounts,
		relations: relations,
		cache:     cache,
		ttl:       ttl,
	}
}

// CanAccess applique les règles dans cet ordre :
//  1. sujet inconnu -> refus (fail closed) ;
//  2. soi-même -> autorisé, sans consulter le cache ;
//  3. cache hit -> décision cachée telle quelle ;
//  4. visibilité inconnue -> résolution via le compte, introuvable -> refus ;
//  5. PRIVATE -> autorisé ssi FOLLOW viewer -> subject (une REQUEST en
//     attente ne suffit pas) ;
//  6. PUBLIC -> autorisé sauf BLOCK subject -> viewer (le sens inverse ne
//     compte pas) ;
//  7. mise en cache puis retour.
//
// Un refus est (false, nil). Une erreur n'est JAMAIS une décision : panne de
// stockage ou de cache, à retenter côté appelant.
func (g *Guardian) CanAccess(ctx context.Context, subject domain.Subject, viewer domain.Principal) (bool, error) {
	if subject.ID == "" {
		return false, nil
	}
	if viewer.ID() == subject.ID {
		return true, nil
	}

	key := decisionKey(subject.ID, viewer)
	if cached, ok, err := g.cache.Get(ctx, key); err != nil {
		return false, fmt.Errorf("guardian: cache get: %w", err)
	} else if ok {
		return cached == allowValue, nil
	}

	visibility := subject.Visibility
	if visibility == domain.VisibilityUnknown {
		account, err := g.accounts.GetByID(ctx, subject.ID)
		if errors.Is(err, domain.ErrUserNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("guardian: resolve subject: %w", err)
		}
		visibility = account.Visibility
	}

	allowed, err := g.evaluate(ctx, subject.ID, visibility, viewer)
	if err != nil {
		return false, err
	}

	value := denyValue
	if allowed {
		value = allowValue
	}
	if err := g.cache.Set(ctx, key, value, g.ttl); err != nil {
		return false, fmt.Errorf("guardian: cache set: %w", err)
	}
	return allowed, nil
}

func (g *Guardian) evaluate(ctx context.Context, subjectID string, visibility domain.Visibility, viewer domain.Principal) (bool, error) {
	if visibility == domain.VisibilityPrivate {
		// Un anonyme ne suit personne.
		if viewer.IsAnonymous() {
			return false, nil
		}
		following, err := g.relations.ExistsAny(ctx, viewer.ID(), subjectID, domain.RelationFollow)
		if err != nil {
			return false, fmt.Errorf("guardian: follow lookup: %w", err)
		}
		return following, nil
	}

	// PUBLIC : seul un blocage posé PAR le sujet ferme l'accès.
	if viewer.IsAnonymous() {
		return true, nil
	}
	blocked, err := g.relations.ExistsAny(ctx, subjectID, viewer.ID(), domain.RelationBlock)
	if err != nil {
		return false, fmt.Errorf("guardian: block lookup: %w", err)
	}
	return !blocked, nil
}

func decisionKey(subjectID string, viewer domain.Principal) string {
	viewerID := viewer.ID()
	if viewerID == "" {
		viewerID = anonymousCacheID
	}
	return fmt.Sprintf("guardian:%s:%s", subjectID, viewerID)
}
