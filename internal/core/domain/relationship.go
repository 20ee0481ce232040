package domain

import (
	"strings"
	"time"
)

// RelationType discrimine les arêtes dirigées du graphe social.
type RelationType string

const (
	RelationFollow  RelationType = "FOLLOW"  // Suivi accepté
	RelationRequest RelationType = "REQUEST" // Demande de suivi en attente (cible privée)
	RelationBlock   RelationType = "BLOCK"   // Blocage unilatéral
	RelationMute    RelationType = "MUTE"    // Sourdine unilatérale, sans effet sur la visibilité
)

// Visibility est le mode de visibilité porté par le compte.
type Visibility string

const (
	// VisibilityUnknown force le Guardian à résoudre le compte lui-même.
	VisibilityUnknown Visibility = ""
	VisibilityPublic  Visibility = "PUBLIC"
	VisibilityPrivate Visibility = "PRIVATE"
)

// --- ENTITÉS ---

// Relationship est une arête dirigée entre deux comptes.
// La clé naturelle est le triplet (FromID, ToID, Type) : jamais deux arêtes
// identiques, et l'arête inverse est une entité indépendante.
type Relationship struct {
	FromID    string
	ToID      string
	Type      RelationType
	Reason    string // Optionnel ("" = absent), surtout utile pour BLOCK/MUTE
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Account est la projection minimale du compte dont ce service a besoin.
type Account struct {
	ID         string
	Username   string
	Visibility Visibility
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (a *Account) IsPrivate() bool {
	return a.Visibility == VisibilityPrivate
}

// --- FACTORY ---

// NewRelationship crée une arête valide.
// C'est le SEUL moyen d'en construire une : les invariants (pas d'arête vers
// soi-même, pas d'identifiant vide) sont vérifiés ici, avant tout accès au stockage.
func NewRelationship(fromID, toID string, t RelationType, reason string) (*Relationship, error) {
	fromID = strings.TrimSpace(fromID)
	toID = strings.TrimSpace(toID)

	if fromID == "" || toID == "" {
		return nil, ErrEmptyAccountID
	}
	if fromID == toID {
		return nil, ErrSelfRelation
	}

	now := time.Now().UTC()
	return &Relationship{
		FromID:    fromID,
		ToID:      toID,
		Type:      t,
		Reason:    strings.TrimSpace(reason),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsPending indique une demande de suivi pas encore acceptée.
func (r *Relationship) IsPending() bool {
	return r.Type == RelationRequest
}

// --- PRINCIPAL ---

// Principal identifie l'appelant d'une opération : soit un compte authentifié,
// soit Anonymous. Il est passé explicitement partout, jamais lu d'un contexte
// ambiant par le coeur.
type Principal struct {
	id string
}

// Authenticated construit le principal d'un compte connu.
func Authenticated(id string) Principal {
	return Principal{id: id}
}

// Anonymous est le principal d'une requête sans identité.
func Anonymous() Principal {
	return Principal{}
}

func (p Principal) IsAnonymous() bool { return p.id == "" }

// ID retourne l'identifiant du compte, "" pour Anonymous.
func (p Principal) ID() string { return p.id }

// --- GUARDIAN ---

// Subject est ce que le Guardian évalue : un compte et, si l'appelant la
// connaît déjà, sa visibilité (sinon VisibilityUnknown et le Guardian la résout).
type Subject struct {
	ID         string
	Visibility Visibility
}

// --- STATS ---

// StatsCounts regroupe les compteurs indépendants d'un compte.
type StatsCounts struct {
	Followers int64 // FOLLOW entrants
	Following int64 // FOLLOW sortants
	Blocked   int64 // BLOCK sortants
	Blockers  int64 // BLOCK entrants
	Muting    int64 // MUTE sortants
	Muters    int64 // MUTE entrants
	Requests  int64 // REQUEST entrants (demandes reçues en attente)
	Mutuals   int64 // Comptes suivis dans les deux sens
}

// StatsFlags décrit la relation entre le sujet et le spectateur.
// Tous à false quand le spectateur est anonyme.
type StatsFlags struct {
	IsFollowing  bool // viewer -> subject FOLLOW
	IsFollower   bool // subject -> viewer FOLLOW
	IsBlocking   bool // viewer -> subject BLOCK
	IsBlocked    bool // subject -> viewer BLOCK
	IsMuting     bool // viewer -> subject MUTE
	IsRequesting bool // viewer -> subject REQUEST
	IsRequested  bool // subject -> viewer REQUEST
}

type RelationshipStats struct {
	Counts StatsCounts
	Flags  StatsFlags
}
