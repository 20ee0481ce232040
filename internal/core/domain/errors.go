package domain

import "errors"

// Error est une erreur métier portant un code stable, lisible machine.
// Les resolvers traduisent le code directement en payload utilisateur ;
// le message n'est qu'un confort de debug.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// AsDomain extrait l'erreur métier si err en porte une dans sa chaîne.
// Les erreurs d'infrastructure (DB/cache injoignables) ne matchent jamais :
// elles remontent telles quelles et ne doivent JAMAIS être confondues avec
// une décision métier.
func AsDomain(err error) (*Error, bool) {
	var domErr *Error
	if errors.As(err, &domErr) {
		return domErr, true
	}
	return nil, false
}

// --- ERREURS MÉTIER PARTAGÉES ---

var (
	ErrUserNotFound          = &Error{Code: "USER_NOT_FOUND", Message: "user not found"}
	ErrFollowRequestNotFound = &Error{Code: "FOLLOW_REQUEST_NOT_FOUND", Message: "no pending follow request between these users"}
	ErrCannotAcceptSelf      = &Error{Code: "CANNOT_ACCEPT_SELF", Message: "you cannot accept a follow request from yourself"}
	ErrCannotDenySelf        = &Error{Code: "CANNOT_DENY_SELF", Message: "you cannot deny a follow request from yourself"}
)

// --- SENTINELLES TECHNIQUES ---
// Parlées entre le coeur et les repositories, jamais exposées aux appelants :
// les services les traduisent en erreurs métier au point de détection.

var (
	ErrRelationshipNotFound = errors.New("relationship not found")
	ErrRelationshipExists   = errors.New("relationship already exists")
	ErrSelfRelation         = errors.New("self relationship is forbidden")
	ErrEmptyAccountID       = errors.New("account id cannot be empty")
)
