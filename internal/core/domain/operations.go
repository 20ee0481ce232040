package domain

import "fmt"

// Op énumère les transitions d'arêtes du mutateur.
type Op string

const (
	OpFollow   Op = "follow"
	OpUnfollow Op = "unfollow"
	OpBlock    Op = "block"
	OpUnblock  Op = "unblock"
	OpMute     Op = "mute"
	OpUnmute   Op = "unmute"
)

// OpSpec décrit une transition : le type d'arête manipulé, le sens de la
// transition (création ou suppression), et les codes d'erreur associés.
type OpSpec struct {
	Op       Op
	Edge     RelationType
	Positive bool // true = création d'arête, false = suppression

	selfCode        string
	conflictCode    string
	conflictMessage string
}

// SpecFor est le mapping total Op -> OpSpec. Toute nouvelle opération doit
// être ajoutée ici ; un Op inconnu est un bug de programmation, pas un cas
// d'erreur runtime.
func SpecFor(op Op) OpSpec {
	switch op {
	case OpFollow:
		return OpSpec{op, RelationFollow, true, "CANNOT_FOLLOW_SELF", "USER_ALREADY_FOLLOWED", "user is already followed"}
	case OpUnfollow:
		return OpSpec{op, RelationFollow, false, "CANNOT_UNFOLLOW_SELF", "USER_NOT_UNFOLLOWED", "user is not followed"}
	case OpBlock:
		return OpSpec{op, RelationBlock, true, "CANNOT_BLOCK_SELF", "USER_ALREADY_BLOCKED", "user is already blocked"}
	case OpUnblock:
		return OpSpec{op, RelationBlock, false, "CANNOT_UNBLOCK_SELF", "USER_NOT_UNBLOCKED", "user is not blocked"}
	case OpMute:
		return OpSpec{op, RelationMute, true, "CANNOT_MUTE_SELF", "USER_ALREADY_MUTED", "user is already muted"}
	case OpUnmute:
		return OpSpec{op, RelationMute, false, "CANNOT_UNMUTE_SELF", "USER_NOT_UNMUTED", "user is not muted"}
	}
	panic(fmt.Sprintf("domain: unknown relationship op %q", op))
}

// SelfError : l'acteur se vise lui-même.
func (s OpSpec) SelfError() *Error {
	return &Error{Code: s.selfCode, Message: fmt.Sprintf("you cannot %s yourself", s.Op)}
}

// ConflictError : transition positive alors que l'arête existe déjà, ou
// transition négative alors qu'elle n'existe pas.
func (s OpSpec) ConflictError() *Error {
	return &Error{Code: s.conflictCode, Message: s.conflictMessage}
}
