package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jupiterclapton/cenackle/services/relation-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/relation-service/internal/core/ports"
)

// Actions publiées sur le broker après chaque mutation réussie.
const (
	ActionFollowCreated   = "follow.created"
	ActionFollowRequested = "follow.requested"
	ActionFollowAccepted  = "follow.accepted"
	ActionFollowDenied    = "follow.denied"
	ActionFollowRemoved   = "follow.removed"
	ActionBlockCreated    = "block.created"
	ActionBlockRemoved    = "block.removed"
	ActionMuteCreated     = "mute.created"
	ActionMuteRemoved     = "mute.removed"
)

// RelationshipService implémente ports.RelationshipService : la machine à
// états des arêtes. Les arêtes ne sont JAMAIS mutées ailleurs qu'ici.
type RelationshipService struct {
	relations ports.RelationshipRepository
	accounts  ports.AccountDirectory
	broker    ports.EventPublisher
}

func NewRelationshipService(
	relations ports.RelationshipRepository,
	accounts ports.AccountDirectory,
	broker ports.EventPublisher,
) *RelationshipService {
	return &RelationshipService{
		relations: relations,
		accounts:  accounts,
		broker:    broker,
	}
}

// validatePair porte les préconditions communes à toutes les opérations :
// pas d'auto-ciblage, et la cible doit exister. Fonction libre avec
// paramètres explicites, pas de contexte capturé.
func validatePair(ctx context.Context, accounts ports.AccountDirectory, spec domain.OpSpec, actorID, targetID string) (*domain.Account, error) {
	if actorID == targetID {
		return nil, spec.SelfError()
	}
	target, err := accounts.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("%s: resolve target: %w", spec.Op, err)
	}
	return target, nil
}

// --- TRANSITIONS POSITIVES ---

// Follow crée un FOLLOW actor -> target, ou une REQUEST si la cible est
// privée. Toute arête FOLLOW ou REQUEST préexistante dans ce sens est un conflit.
func (s *RelationshipService) Follow(ctx context.Context, cmd ports.RelationCmd) (*domain.Relationship, error) {
	spec := domain.SpecFor(domain.OpFollow)

	target, err := validatePair(ctx, s.accounts, spec, cmd.ActorID, cmd.TargetID)
	if err != nil {
		return nil, err
	}

	// Vérification "soft" : la contrainte d'unicité de la DB reste le
	// garde-fou ultime en cas de course entre deux follows concurrents.
	exists, err := s.relations.ExistsAny(ctx, cmd.ActorID, cmd.TargetID, domain.RelationFollow, domain.RelationRequest)
	if err != nil {
		return nil, fmt.Errorf("follow: edge lookup: %w", err)
	}
	if exists {
		return nil, spec.ConflictError()
	}

	edgeType := domain.RelationFollow
	action := ActionFollowCreated
	if target.IsPrivate() {
		edgeType = domain.RelationRequest
		action = ActionFollowRequested
	}

	rel, err := domain.NewRelationship(cmd.ActorID, cmd.TargetID, edgeType, cmd.Reason)
	if err != nil {
		return nil, err
	}

	if err := s.relations.Create(ctx, rel); err != nil {
		if errors.Is(err, domain.ErrRelationshipExists) {
			// Le concurrent a gagné la course : même réponse que si l'arête
			// avait été vue au check.
			return nil, spec.ConflictError()
		}
		return nil, fmt.Errorf("follow: create: %w", err)
	}

	s.publish(ctx, action, rel)
	return rel, nil
}

// Block pose un BLOCK actor -> target et purge, dans la MÊME transaction,
// toute arête FOLLOW ou REQUEST entre les deux comptes, dans les deux sens.
func (s *RelationshipService) Block(ctx context.Context, cmd ports.RelationCmd) (*domain.Relationship, error) {
	spec := domain.SpecFor(domain.OpBlock)

	if _, err := validatePair(ctx, s.accounts, spec, cmd.ActorID, cmd.TargetID); err != nil {
		return nil, err
	}

	exists, err := s.relations.ExistsAny(ctx, cmd.ActorID, cmd.TargetID, domain.RelationBlock)
	if err != nil {
		return nil, fmt.Errorf("block: edge lookup: %w", err)
	}
	if exists {
		return nil, spec.ConflictError()
	}

	rel, err := domain.NewRelationship(cmd.ActorID, cmd.TargetID, domain.RelationBlock, cmd.Reason)
	if err != nil {
		return nil, err
	}

	if err := s.relations.CreateBlock(ctx, rel); err != nil {
		if errors.Is(err, domain.ErrRelationshipExists) {
			return nil, spec.ConflictError()
		}
		return nil, fmt.Errorf("block: create: %w", err)
	}

	s.publish(ctx, ActionBlockCreated, rel)
	return rel, nil
}

// Mute pose un MUTE actor -> target, sans aucun effet sur les autres arêtes.
func (s *RelationshipService) Mute(ctx context.Context, cmd ports.RelationCmd) (*domain.Relationship, error) {
	spec := domain.SpecFor(domain.OpMute)

	if _, err := validatePair(ctx, s.accounts, spec, cmd.ActorID, cmd.TargetID); err != nil {
		return nil, err
	}

	exists, err := s.relations.ExistsAny(ctx, cmd.ActorID, cmd.TargetID, domain.RelationMute)
	if err != nil {
		return nil, fmt.Errorf("mute: edge lookup: %w", err)
	}
	if exists {
		return nil, spec.ConflictError()
	}

	rel, err := domain.NewRelationship(cmd.ActorID, cmd.TargetID, domain.RelationMute, cmd.Reason)
	if err != nil {
		return nil, err
	}

	if err := s.relations.Create(ctx, rel); err != nil {
		if errors.Is(err, domain.ErrRelationshipExists) {
			return nil, spec.ConflictError()
		}
		return nil, fmt.Errorf("mute: create: %w", err)
	}

	s.publish(ctx, ActionMuteCreated, rel)
	return rel, nil
}

// --- TRANSITIONS NÉGATIVES ---

func (s *RelationshipService) Unfollow(ctx context.Context, cmd ports.RelationCmd) (*domain.Relationship, error) {
	return s.remove(ctx, domain.OpUnfollow, cmd, ActionFollowRemoved)
}

func (s *RelationshipService) Unblock(ctx context.Context, cmd ports.RelationCmd) (*domain.Relationship, error) {
	return s.remove(ctx, domain.OpUnblock, cmd, ActionBlockRemoved)
}

func (s *RelationshipService) Unmute(ctx context.Context, cmd ports.RelationCmd) (*domain.Relationship, error) {
	return s.remove(ctx, domain.OpUnmute, cmd, ActionMuteRemoved)
}

// remove supprime l'arête actor -> target du type de l'opération et retourne
// l'enregistrement supprimé. Cas particulier : unfollow retombe sur une
// REQUEST en attente (annuler sa demande = se désabonner). Seul follow a un
// état intermédiaire, les autres opérations n'ont rien sur quoi retomber.
func (s *RelationshipService) remove(ctx context.Context, op domain.Op, cmd ports.RelationCmd, action string) (*domain.Relationship, error) {
	spec := domain.SpecFor(op)

	if _, err := validatePair(ctx, s.accounts, spec, cmd.ActorID, cmd.TargetID); err != nil {
		return nil, err
	}

	rel, err := s.relations.Get(ctx, cmd.ActorID, cmd.TargetID, spec.Edge)
	if errors.Is(err, domain.ErrRelationshipNotFound) && op == domain.OpUnfollow {
		rel, err = s.relations.Get(ctx, cmd.ActorID, cmd.TargetID, domain.RelationRequest)
	}
	if err != nil {
		if errors.Is(err, domain.ErrRelationshipNotFound) {
			return nil, spec.ConflictError()
		}
		return nil, fmt.Errorf("%s: edge lookup: %w", op, err)
	}

	if err := s.relations.Delete(ctx, rel.FromID, rel.ToID, rel.Type); err != nil {
		if errors.Is(err, domain.ErrRelationshipNotFound) {
			// Supprimée entre le Get et le Delete par un appel concurrent.
			return nil, spec.ConflictError()
		}
		return nil, fmt.Errorf("%s: delete: %w", op, err)
	}

	s.publish(ctx, action, rel)
	return rel, nil
}

// --- DEMANDES DE SUIVI ---

// AcceptFollowRequest promeut la REQUEST requester -> actor en FOLLOW, en
// place : mêmes extrémités, même raison, updated_at rafraîchi.
func (s *RelationshipService) AcceptFollowRequest(ctx context.Context, actorID, requesterID string) (*domain.Relationship, error) {
	if actorID == requesterID {
		return nil, domain.ErrCannotAcceptSelf
	}
	if _, err := s.accounts.GetByID(ctx, requesterID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("accept: resolve requester: %w", err)
	}

	rel, err := s.relations.Promote(ctx, requesterID, actorID, domain.RelationRequest, domain.RelationFollow)
	if err != nil {
		if errors.Is(err, domain.ErrRelationshipNotFound) {
			return nil, domain.ErrFollowRequestNotFound
		}
		return nil, fmt.Errorf("accept: promote: %w", err)
	}

	s.publish(ctx, ActionFollowAccepted, rel)
	return rel, nil
}

// DenyFollowRequest supprime la REQUEST requester -> actor.
func (s *RelationshipService) DenyFollowRequest(ctx context.Context, actorID, requesterID string) (bool, error) {
	if actorID == requesterID {
		return false, domain.ErrCannotDenySelf
	}
	if _, err := s.accounts.GetByID(ctx, requesterID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return false, domain.ErrUserNotFound
		}
		return false, fmt.Errorf("deny: resolve requester: %w", err)
	}

	rel, err := s.relations.Get(ctx, requesterID, actorID, domain.RelationRequest)
	if err != nil {
		if errors.Is(err, domain.ErrRelationshipNotFound) {
			return false, domain.ErrFollowRequestNotFound
		}
		return false, fmt.Errorf("deny: edge lookup: %w", err)
	}

	if err := s.relations.Delete(ctx, rel.FromID, rel.ToID, rel.Type); err != nil {
		if errors.Is(err, domain.ErrRelationshipNotFound) {
			return false, domain.ErrFollowRequestNotFound
		}
		return false, fmt.Errorf("deny: delete: %w", err)
	}

	s.publish(ctx, ActionFollowDenied, rel)
	return true, nil
}

// publish notifie le broker en best-effort : la mutation a déjà commit, on
// ne la fait pas échouer pour un broker lent ou down.
func (s *RelationshipService) publish(ctx context.Context, action string, rel *domain.Relationship) {
	if s.broker == nil {
		return
	}
	if err := s.broker.PublishRelationChanged(ctx, action, rel); err != nil {
		slog.Warn("relation event publish failed", "action", action, "error", err)
	}
}
