package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jupiterclapton/cenackle/services/relation-service/internal/core/domain"
)

// Clé privée pour le contexte (évite les collisions)
type contextKey struct{ name string }

var principalCtxKey = &contextKey{"principal"}

// Verifier valide localement les access tokens émis par l'identity service
// (RS256, clé publique seulement : ce service ne signe jamais rien).
type Verifier struct {
	publicKey *rsa.PublicKey
}

func NewVerifier(publicKeyPEM []byte) (*Verifier, error) {
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return &Verifier{publicKey: pubKey}, nil
}

// Validate vérifie la signature et retourne le Subject (l'ID du compte).
func (v *Verifier) Validate(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Sécurité critique : refuser tout sauf RSA, sinon un attaquant
		// force l'algo à "none" ou HS256.
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.publicKey, nil
	})
	if err != nil {
		return "", err // Token expiré ou signature invalide
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", errors.New("invalid token claims")
	}
	return claims.Subject, nil
}

// Middleware décode le header Authorization et injecte le Principal.
func Middleware(verifier *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")

			// 1. Pas de header ? Requête anonyme, on laisse passer : les
			// handlers qui exigent un acteur répondent 401 eux-mêmes.
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			// 2. Validation du format "Bearer <token>"
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "Invalid token format", http.StatusUnauthorized)
				return
			}
			tokenStr := strings.TrimPrefix(header, "Bearer ")

			// 3. Validation locale (clé publique)
			userID, err := verifier.Validate(tokenStr)
			if err != nil {
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			// 4. Succès : Principal authentifié dans le contexte
			ctx := context.WithValue(r.Context(), principalCtxKey, domain.Authenticated(userID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithPrincipal injecte un principal déjà résolu (tests, appels internes).
func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, p)
}

// ForContext récupère le Principal depuis un handler ; Anonymous par défaut.
func ForContext(ctx context.Context) domain.Principal {
	if p, ok := ctx.Value(principalCtxKey).(domain.Principal); ok {
		return p
	}
	return domain.Anonymous()
}
