package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jupiterclapton/cenackle/services/relation-service/internal/auth"
	"github.com/jupiterclapton/cenackle/services/relation-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/relation-service/internal/core/ports"
)

// Server est l'adapter primaire HTTP/JSON : la couche appelante que les
// resolvers GraphQL du gateway remplaceraient en production.
type Server struct {
	relations ports.RelationshipService
	guardian  ports.AccessGuardian
	stats     ports.StatsService
}

func NewServer(relations ports.RelationshipService, guardian ports.AccessGuardian, stats ports.StatsService) *Server {
	return &Server{
		relations: relations,
		guardian:  guardian,
		stats:     stats,
	}
}

// Routes construit le mux. Les mutations exigent un acteur authentifié ;
// stats et access acceptent les anonymes.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/users/{id}/follow", s.requireActor(s.handleFollow))
	mux.HandleFunc("POST /v1/users/{id}/unfollow", s.requireActor(s.handleUnfollow))
	mux.HandleFunc("POST /v1/users/{id}/block", s.requireActor(s.handleBlock))
	mux.HandleFunc("POST /v1/users/{id}/unblock", s.requireActor(s.handleUnblock))
	mux.HandleFunc("POST /v1/users/{id}/mute", s.requireActor(s.handleMute))
	mux.HandleFunc("POST /v1/users/{id}/unmute", s.requireActor(s.handleUnmute))

	mux.HandleFunc("POST /v1/follow-requests/{requesterId}/accept", s.requireActor(s.handleAcceptRequest))
	mux.HandleFunc("POST /v1/follow-requests/{requesterId}/deny", s.requireActor(s.handleDenyRequest))

	mux.HandleFunc("GET /v1/users/{id}/stats", s.handleStats)
	mux.HandleFunc("GET /v1/users/{id}/access", s.handleAccess)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	return mux
}

// --- DTOs ---

type relationBody struct {
	Reason string `json:"reason,omitempty"`
}

type relationResponse struct {
	FromID    string    `json:"from_id"`
	ToID      string    `json:"to_id"`
	Type      string    `json:"type"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type statsResponse struct {
	Counts countsDTO `json:"counts"`
	Flags  flagsDTO  `json:"flags"`
}

type countsDTO struct {
	Followers int64 `json:"followers"`
	Following int64 `json:"following"`
	Blocked   int64 `json:"blocked"`
	Blockers  int64 `json:"blockers"`
	Muting    int64 `json:"muting"`
	Muters    int64 `json:"muters"`
	Requests  int64 `json:"requests"`
	Mutuals   int64 `json:"mutuals"`
}

type flagsDTO struct {
	IsFollowing  bool `json:"is_following"`
	IsFollower   bool `json:"is_follower"`
	IsBlocking   bool `json:"is_blocking"`
	IsBlocked    bool `json:"is_blocked"`
	IsMuting     bool `json:"is_muting"`
	IsRequesting bool `json:"is_requesting"`
	IsRequested  bool `json:"is_requested"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --- MIDDLEWARE LOCAL ---

type actorHandler func(w http.ResponseWriter, r *http.Request, actorID string)

// requireActor refuse les anonymes : toutes les mutations exigent une identité.
func (s *Server) requireActor(next actorHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := auth.ForContext(r.Context())
		if principal.IsAnonymous() {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Code: "UNAUTHENTICATED", Message: "authentication required"})
			return
		}
		next(w, r, principal.ID())
	}
}

// --- HANDLERS : MUTATIONS ---

func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request, actorID string) {
	s.mutate(w, r, actorID, s.relations.Follow)
}

func (s *Server) handleUnfollow(w http.ResponseWriter, r *http.Request, actorID string) {
	s.mutate(w, r, actorID, s.relations.Unfollow)
}

func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request, actorID string) {
	s.mutate(w, r, actorID, s.relations.Block)
}

func (s *Server) handleUnblock(w http.ResponseWriter, r *http.Request, actorID string) {
	s.mutate(w, r, actorID, s.relations.Unblock)
}

func (s *Server) handleMute(w http.ResponseWriter, r *http.Request, actorID string) {
	s.mutate(w, r, actorID, s.relations.Mute)
}

func (s *Server) handleUnmute(w http.ResponseWriter, r *http.Request, actorID string) {
	s.mutate(w, r, actorID, s.relations.Unmute)
}

type relationOp func(ctx context.Context, cmd ports.RelationCmd) (*domain.Relationship, error)

func (s *Server) mutate(w http.ResponseWriter, r *http.Request, actorID string, op relationOp) {
	var body relationBody
	// Corps optionnel : seul reason peut y figurer
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	rel, err := op(r.Context(), ports.RelationCmd{
		ActorID:  actorID,
		TargetID: r.PathValue("id"),
		Reason:   body.Reason,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRelationResponse(rel))
}

func (s *Server) handleAcceptRequest(w http.ResponseWriter, r *http.Request, actorID string) {
	rel, err := s.relations.AcceptFollowRequest(r.Context(), actorID, r.PathValue("requesterId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRelationResponse(rel))
}

func (s *Server) handleDenyRequest(w http.ResponseWriter, r *http.Request, actorID string) {
	ok, err := s.relations.DenyFollowRequest(r.Context(), actorID, r.PathValue("requesterId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"denied": ok})
}

// --- HANDLERS : LECTURES ---

// handleStats passe d'abord par le Guardian : les stats d'un compte sont des
// données sensibles au même titre que son profil.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	viewer := auth.ForContext(r.Context())
	subjectID := r.PathValue("id")

	allowed, err := s.guardian.CanAccess(r.Context(), domain.Subject{ID: subjectID}, viewer)
	if err != nil {
		writeError(w, err)
		return
	}
	if !allowed {
		writeJSON(w, http.StatusForbidden, errorResponse{Code: "FORBIDDEN", Message: "you cannot view this profile"})
		return
	}

	stats, err := s.stats.GetStats(r.Context(), subjectID, viewer)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Counts: countsDTO{
			Followers: stats.Counts.Followers,
			Following: stats.Counts.Following,
			Blocked:   stats.Counts.Blocked,
			Blockers:  stats.Counts.Blockers,
			Muting:    stats.Counts.Muting,
			Muters:    stats.Counts.Muters,
			Requests:  stats.Counts.Requests,
			Mutuals:   stats.Counts.Mutuals,
		},
		Flags: flagsDTO{
			IsFollowing:  stats.Flags.IsFollowing,
			IsFollower:   stats.Flags.IsFollower,
			IsBlocking:   stats.Flags.IsBlocking,
			IsBlocked:    stats.Flags.IsBlocked,
			IsMuting:     stats.Flags.IsMuting,
			IsRequesting: stats.Flags.IsRequesting,
			IsRequested:  stats.Flags.IsRequested,
		},
	})
}

func (s *Server) handleAccess(w http.ResponseWriter, r *http.Request) {
	viewer := auth.ForContext(r.Context())

	allowed, err := s.guardian.CanAccess(r.Context(), domain.Subject{ID: r.PathValue("id")}, viewer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

// --- HELPERS ---

func toRelationResponse(rel *domain.Relationship) relationResponse {
	return relationResponse{
		FromID:    rel.FromID,
		ToID:      rel.ToID,
		Type:      string(rel.Type),
		Reason:    rel.Reason,
		CreatedAt: rel.CreatedAt,
		UpdatedAt: rel.UpdatedAt,
	}
}

// writeError mappe le code métier sur le statut HTTP ; tout le reste est une
// panne d'infrastructure (502, jamais déguisée en refus métier).
func writeError(w http.ResponseWriter, err error) {
	if domErr, ok := domain.AsDomain(err); ok {
		writeJSON(w, statusForCode(domErr.Code), errorResponse{Code: domErr.Code, Message: domErr.Message})
		return
	}

	slog.Error("request failed on infrastructure", "error", err)
	writeJSON(w, http.StatusBadGateway, errorResponse{Code: "INTERNAL", Message: "temporary failure, retry later"})
}

func statusForCode(code string) int {
	switch code {
	case "USER_NOT_FOUND", "FOLLOW_REQUEST_NOT_FOUND":
		return http.StatusNotFound
	}
	if strings.HasPrefix(code, "CANNOT_") {
		return http.StatusBadRequest
	}
	// USER_ALREADY_* et USER_NOT_UN*ED : état en conflit avec la transition
	return http.StatusConflict
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
