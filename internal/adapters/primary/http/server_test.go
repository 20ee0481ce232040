package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/cenackle/services/relation-service/internal/auth"
	"github.com/jupiterclapton/cenackle/services/relation-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/relation-service/internal/core/ports"
)

// Stubs pilotés par fonctions : chaque test ne branche que ce dont il a besoin.

type stubRelations struct {
	follow func(ctx context.Context, cmd ports.RelationCmd) (*domain.Relationship, error)
	accept func(ctx context.Context, actorID, requesterID string) (*domain.Relationship, error)
	deny   func(ctx context.Context, actorID, requesterID string) (bool, error)
}

func (s *stubRelations) Follow(ctx context.Context, cmd ports.RelationCmd) (*domain.Relationship, error) {
	return s.follow(ctx, cmd)
}
func (s *stubRelations) Unfollow(ctx context.Context, cmd ports.RelationCmd) (*domain.Relationship, error) {
	return s.follow(ctx, cmd)
}
func (s *stubRelations) Block(ctx context.Context, cmd ports.RelationCmd) (*domain.Relationship, error) {
	return s.follow(ctx, cmd)
}
func (s *stubRelations) Unblock(ctx context.Context, cmd ports.RelationCmd) (*domain.Relationship, error) {
	return s.follow(ctx, cmd)
}
func (s *stubRelations) Mute(ctx context.Context, cmd ports.RelationCmd) (*domain.Relationship, error) {
	return s.follow(ctx, cmd)
}
func (s *stubRelations) Unmute(ctx context.Context, cmd ports.RelationCmd) (*domain.Relationship, error) {
	return s.follow(ctx, cmd)
}
func (s *stubRelations) AcceptFollowRequest(ctx context.Context, actorID, requesterID string) (*domain.Relationship, error) {
	return s.accept(ctx, actorID, requesterID)
}
func (s *stubRelations) DenyFollowRequest(ctx context.Context, actorID, requesterID string) (bool, error) {
	return s.deny(ctx, actorID, requesterID)
}

type stubGuardian struct {
	allowed bool
	err     error
}

func (s *stubGuardian) CanAccess(ctx context.Context, subject domain.Subject, viewer domain.Principal) (bool, error) {
	return s.allowed, s.err
}

type stubStats struct {
	stats *domain.RelationshipStats
	err   error
}

func (s *stubStats) GetStats(ctx context.Context, subjectID string, viewer domain.Principal) (*domain.RelationshipStats, error) {
	return s.stats, s.err
}

func doRequest(t *testing.T, srv *Server, method, target string, principal domain.Principal) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if !principal.IsAnonymous() {
		req = req.WithContext(auth.WithPrincipal(req.Context(), principal))
	}
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestMutationsRequireAuthentication(t *testing.T) {
	srv := NewServer(&stubRelations{}, &stubGuardian{}, &stubStats{})

	rec := doRequest(t, srv, http.MethodPost, "/v1/users/alice/follow", domain.Anonymous())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHENTICATED", decodeError(t, rec).Code)
}

func TestFollowHandlerReturnsEdge(t *testing.T) {
	edge, err := domain.NewRelationship("bob", "alice", domain.RelationFollow, "")
	require.NoError(t, err)

	srv := NewServer(&stubRelations{
		follow: func(ctx context.Context, cmd ports.RelationCmd) (*domain.Relationship, error) {
			assert.Equal(t, "bob", cmd.ActorID)
			assert.Equal(t, "alice", cmd.TargetID)
			return edge, nil
		},
	}, &stubGuardian{}, &stubStats{})

	rec := doRequest(t, srv, http.MethodPost, "/v1/users/alice/follow", domain.Authenticated("bob"))
	require.Equal(t, http.StatusOK, rec.Code)

	var body relationResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "FOLLOW", body.Type)
	assert.Equal(t, "bob", body.FromID)
	assert.Equal(t, "alice", body.ToID)
}

func TestDomainErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"conflict", &domain.Error{Code: "USER_ALREADY_FOLLOWED", Message: "user is already followed"}, http.StatusConflict, "USER_ALREADY_FOLLOWED"},
		{"missing edge", &domain.Error{Code: "USER_NOT_UNBLOCKED", Message: "user is not blocked"}, http.StatusConflict, "USER_NOT_UNBLOCKED"},
		{"self", &domain.Error{Code: "CANNOT_FOLLOW_SELF", Message: "you cannot follow yourself"}, http.StatusBadRequest, "CANNOT_FOLLOW_SELF"},
		{"not found", domain.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND"},
		{"infrastructure", errors.New("connection refused"), http.StatusBadGateway, "INTERNAL"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := NewServer(&stubRelations{
				follow: func(ctx context.Context, cmd ports.RelationCmd) (*domain.Relationship, error) {
					return nil, tc.err
				},
			}, &stubGuardian{}, &stubStats{})

			rec := doRequest(t, srv, http.MethodPost, "/v1/users/alice/follow", domain.Authenticated("bob"))
			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantCode, decodeError(t, rec).Code)
		})
	}
}

func TestAcceptRequestNotFound(t *testing.T) {
	srv := NewServer(&stubRelations{
		accept: func(ctx context.Context, actorID, requesterID string) (*domain.Relationship, error) {
			assert.Equal(t, "alice", actorID)
			assert.Equal(t, "bob", requesterID)
			return nil, domain.ErrFollowRequestNotFound
		},
	}, &stubGuardian{}, &stubStats{})

	rec := doRequest(t, srv, http.MethodPost, "/v1/follow-requests/bob/accept", domain.Authenticated("alice"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "FOLLOW_REQUEST_NOT_FOUND", decodeError(t, rec).Code)
}

func TestDenyRequestReturnsBool(t *testing.T) {
	srv := NewServer(&stubRelations{
		deny: func(ctx context.Context, actorID, requesterID string) (bool, error) {
			return true, nil
		},
	}, &stubGuardian{}, &stubStats{})

	rec := doRequest(t, srv, http.MethodPost, "/v1/follow-requests/bob/deny", domain.Authenticated("alice"))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]bool
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body["denied"])
}

func TestStatsGuardedByGuardian(t *testing.T) {
	t.Run("denied", func(t *testing.T) {
		srv := NewServer(&stubRelations{}, &stubGuardian{allowed: false}, &stubStats{})

		rec := doRequest(t, srv, http.MethodGet, "/v1/users/alice/stats", domain.Authenticated("bob"))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "FORBIDDEN", decodeError(t, rec).Code)
	})

	t.Run("allowed", func(t *testing.T) {
		srv := NewServer(&stubRelations{}, &stubGuardian{allowed: true}, &stubStats{
			stats: &domain.RelationshipStats{
				Counts: domain.StatsCounts{Followers: 2, Mutuals: 1},
				Flags:  domain.StatsFlags{IsFollowing: true},
			},
		})

		rec := doRequest(t, srv, http.MethodGet, "/v1/users/alice/stats", domain.Authenticated("bob"))
		require.Equal(t, http.StatusOK, rec.Code)

		var body statsResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, int64(2), body.Counts.Followers)
		assert.Equal(t, int64(1), body.Counts.Mutuals)
		assert.True(t, body.Flags.IsFollowing)
	})

	t.Run("guardian infrastructure failure", func(t *testing.T) {
		srv := NewServer(&stubRelations{}, &stubGuardian{err: errors.New("redis down")}, &stubStats{})

		rec := doRequest(t, srv, http.MethodGet, "/v1/users/alice/stats", domain.Authenticated("bob"))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestAccessEndpoint(t *testing.T) {
	srv := NewServer(&stubRelations{}, &stubGuardian{allowed: true}, &stubStats{})

	rec := doRequest(t, srv, http.MethodGet, "/v1/users/alice/access", domain.Anonymous())
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]bool
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body["allowed"])
}

func TestHealthz(t *testing.T) {
	srv := NewServer(&stubRelations{}, &stubGuardian{}, &stubStats{})

	rec := doRequest(t, srv, http.MethodGet, "/healthz", domain.Anonymous())
	assert.Equal(t, http.StatusOK, rec.Code)
}
