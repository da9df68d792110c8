// Package types holds the core data model shared across the server:
// accounts, friendships, groups and the two message kinds.
package types

import "time"

// UserID is a database-specific record id, assigned on REGISTER.
type UserID int64

// ZeroUser is the sentinel for "no user".
const ZeroUser UserID = 0

// IsZero reports whether the id is unset.
func (id UserID) IsZero() bool { return id == 0 }

// GroupID identifies a group, assigned on GROUP_CREATE.
type GroupID int64

// ZeroGroup is the sentinel for "no group".
const ZeroGroup GroupID = 0

// IsZero reports whether the id is unset.
func (id GroupID) IsZero() bool { return id == 0 }

// User is an account record.
type User struct {
	ID             UserID
	Username       string
	PasswordDigest []byte
	Salt           []byte
	Email          string
	CreatedAt      time.Time
}

// FriendState is the state of an ordered pair (A, B) in the invite graph.
type FriendState int

const (
	// FriendNone means no relation exists in either direction.
	FriendNone FriendState = iota
	// FriendPendingOut means the local user invited the other and is awaiting a response.
	FriendPendingOut
	// FriendPendingIn means the other user invited the local user.
	FriendPendingIn
	// FriendMutual means the invite was accepted; the two are friends.
	FriendMutual
)

// Invite is a directed pending friend request, From -> To.
type Invite struct {
	From      UserID
	To        UserID
	CreatedAt time.Time
}

// Group is a named, owned collection of members.
type Group struct {
	ID      GroupID
	Name    string
	Owner   UserID
	Members map[UserID]bool
}

// HasMember reports whether uid belongs to the group.
func (g *Group) HasMember(uid UserID) bool {
	return g.Members != nil && g.Members[uid]
}

// PMMessage is a persisted private message between two users.
type PMMessage struct {
	MsgID     int64
	From      UserID
	To        UserID
	Content   []byte
	Timestamp time.Time
}

// GMMessage is a persisted group message.
type GMMessage struct {
	MsgID     int64
	Group     GroupID
	From      UserID
	Content   []byte
	Timestamp time.Time
}

// PMPairKey canonically orders a pair of user ids so that both directions of a
// conversation (A->B and B->A) share the same history bucket and msg_id
// sequence.
type PMPairKey struct {
	Low, High UserID
}

// PMPair builds the canonical key for the pair (a, b).
func PMPair(a, b UserID) PMPairKey {
	if a <= b {
		return PMPairKey{Low: a, High: b}
	}
	return PMPairKey{Low: b, High: a}
}

// ChatFocusKind tags the variant held by ChatFocus.
type ChatFocusKind int

const (
	// FocusNone means the connection has no open chat.
	FocusNone ChatFocusKind = iota
	// FocusPM means the connection is focused on a PM conversation with With.
	FocusPM
	// FocusGM means the connection is focused on a group's live room.
	FocusGM
)

// ChatFocus is the at-most-one "currently open chat" on a connection.
type ChatFocus struct {
	Kind  ChatFocusKind
	With  UserID
	Group GroupID
}

// None reports whether no chat is focused.
func (f ChatFocus) None() bool { return f.Kind == FocusNone }
