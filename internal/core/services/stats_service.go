package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/jupiterclapton/cenackle/services/relation-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/relation-service/internal/core/ports"
)

// StatsService agrège les compteurs et drapeaux de relation d'un compte.
// Lecture seule, composée des mêmes primitives que le Guardian.
type StatsService struct {
	relations ports.RelationshipRepository
}

func NewStatsService(relations ports.RelationshipRepository) *StatsService {
	return &StatsService{relations: relations}
}

// GetStats lance toutes les requêtes en parallèle : les compteurs sont
// indépendants et commutent, l'ordre d'arrivée est sans importance. Les
// drapeaux sont dérivés de deux requêtes (une par sens) plutôt que d'une
// requête par drapeau.
func (s *StatsService) GetStats(ctx context.Context, subjectID string, viewer domain.Principal) (*domain.RelationshipStats, error) {
	if subjectID == "" {
		return nil, domain.ErrUserNotFound
	}

	var stats domain.RelationshipStats
	g, ctx := errgroup.WithContext(ctx)

	count := func(dst *int64, what string, fetch func(context.Context) (int64, error)) {
		g.Go(func() error {
			n, err := fetch(ctx)
			if err != nil {
				return fmt.Errorf("stats: %s: %w", what, err)
			}
			*dst = n
			return nil
		})
	}

	count(&stats.Counts.Followers, "followers", func(ctx context.Context) (int64, error) {
		return s.relations.CountTo(ctx, subjectID, domain.RelationFollow)
	})
	count(&stats.Counts.Following, "following", func(ctx context.Context) (int64, error) {
		return s.relations.CountFrom(ctx, subjectID, domain.RelationFollow)
	})
	count(&stats.Counts.Blocked, "blocked", func(ctx context.Context) (int64, error) {
		return s.relations.CountFrom(ctx, subjectID, domain.RelationBlock)
	})
	count(&stats.Counts.Blockers, "blockers", func(ctx context.Context) (int64, error) {
		return s.relations.CountTo(ctx, subjectID, domain.RelationBlock)
	})
	count(&stats.Counts.Muting, "muting", func(ctx context.Context) (int64, error) {
		return s.relations.CountFrom(ctx, subjectID, domain.RelationMute)
	})
	count(&stats.Counts.Muters, "muters", func(ctx context.Context) (int64, error) {
		return s.relations.CountTo(ctx, subjectID, domain.RelationMute)
	})
	count(&stats.Counts.Requests, "requests", func(ctx context.Context) (int64, error) {
		return s.relations.CountTo(ctx, subjectID, domain.RelationRequest)
	})
	count(&stats.Counts.Mutuals, "mutuals", func(ctx context.Context) (int64, error) {
		return s.relations.CountMutuals(ctx, subjectID)
	})

	if !viewer.IsAnonymous() {
		viewerID := viewer.ID()

		g.Go(func() error {
			outgoing, err := s.relations.TypesBetween(ctx, viewerID, subjectID)
			if err != nil {
				return fmt.Errorf("stats: viewer edges: %w", err)
			}
			stats.Flags.IsFollowing = outgoing[domain.RelationFollow]
			stats.Flags.IsBlocking = outgoing[domain.RelationBlock]
			stats.Flags.IsMuting = outgoing[domain.RelationMute]
			stats.Flags.IsRequesting = outgoing[domain.RelationRequest]
			return nil
		})

		g.Go(func() error {
			incoming, err := s.relations.TypesBetween(ctx, subjectID, viewerID)
			if err != nil {
				return fmt.Errorf("stats: subject edges: %w", err)
			}
			stats.Flags.IsFollower = incoming[domain.RelationFollow]
			stats.Flags.IsBlocked = incoming[domain.RelationBlock]
			stats.Flags.IsRequested = incoming[domain.RelationRequest]
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}
