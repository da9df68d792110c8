// Package store defines the interface every persistence backend implements,
// plus the global accessor handlers use to reach whichever backend was
// installed at startup.
package store

import (
	"errors"

	"github.com/chatline/linechatd/internal/types"
)

// ErrNotFound is returned by adapters when a lookup finds nothing.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned by adapters on a uniqueness violation.
var ErrConflict = errors.New("store: conflict")

// Adapter is the interface that must be implemented by a persistence backend.
// The same interface backs both the in-process memstore (default, used by
// every test) and the MySQL-backed sqlstore.
type Adapter interface {
	// Open and configure the adapter.
	Open(config string) error
	// Close releases any resources held by the adapter.
	Close() error
	// IsOpen checks if the adapter is ready for use.
	IsOpen() bool
	// GetName returns the adapter's short name, e.g. "mem" or "mysql".
	GetName() string

	// Accounts

	// UserCreate creates a new user record, assigning its ID.
	UserCreate(u *types.User) error
	// UserGetByUsername looks up a user by username.
	UserGetByUsername(username string) (*types.User, error)
	// UserGet looks up a user by ID.
	UserGet(id types.UserID) (*types.User, error)
	// UserGetAll loads multiple users by ID, skipping unknown ones.
	UserGetAll(ids ...types.UserID) ([]types.User, error)

	// Friendship

	// InviteCreate records a pending directed invite From->To.
	InviteCreate(inv *types.Invite) error
	// InviteGet returns the pending invite From->To, or ErrNotFound.
	InviteGet(from, to types.UserID) (*types.Invite, error)
	// InviteDelete removes the pending invite From->To.
	InviteDelete(from, to types.UserID) error
	// FriendshipCreate records a mutual friendship between a and b.
	FriendshipCreate(a, b types.UserID) error
	// FriendshipDelete removes a mutual friendship in both directions.
	FriendshipDelete(a, b types.UserID) error
	// FriendshipExists reports whether a and b are friends.
	FriendshipExists(a, b types.UserID) (bool, error)
	// FriendList returns the user ids a is friends with.
	FriendList(a types.UserID) ([]types.UserID, error)
	// PendingInvitesFor returns the user ids that have invited `to`.
	PendingInvitesFor(to types.UserID) ([]types.UserID, error)

	// Groups

	// GroupCreate creates a group, assigning its ID, owner as first member.
	GroupCreate(g *types.Group) error
	// GroupGet loads a group by ID.
	GroupGet(id types.GroupID) (*types.Group, error)
	// GroupsForMember returns every group uid belongs to.
	GroupsForMember(uid types.UserID) ([]types.Group, error)
	// GroupAddMember adds uid to the group's member set.
	GroupAddMember(id types.GroupID, uid types.UserID) error
	// GroupRemoveMember removes uid from the group's member set.
	GroupRemoveMember(id types.GroupID, uid types.UserID) error

	// PM

	// PMSave persists a PM, assigning a msg_id monotonic within the ordered pair.
	PMSave(msg *types.PMMessage) error
	// PMHistory returns up to limit messages between a and b, oldest first.
	PMHistory(a, b types.UserID, limit int) ([]types.PMMessage, error)
	// PMConversations returns, for viewer, the peers with any PM history,
	// ordered most-recent-message-first, alongside the unread counter.
	PMConversations(viewer types.UserID) ([]PMConversation, error)
	// UnreadGet returns Unread(viewer, peer).
	UnreadGet(viewer, peer types.UserID) (int, error)
	// UnreadIncr increments Unread(viewer, peer) by one.
	UnreadIncr(viewer, peer types.UserID) error
	// UnreadReset resets Unread(viewer, peer) to zero.
	UnreadReset(viewer, peer types.UserID) error

	// GM

	// GMSave persists a group message, assigning a msg_id monotonic within the group.
	GMSave(msg *types.GMMessage) error
	// GMHistory returns up to limit messages in the group, oldest first.
	GMHistory(group types.GroupID, limit int) ([]types.GMMessage, error)
}

// PMConversation is one row of a PM_CONVERSATIONS reply.
type PMConversation struct {
	Peer   types.UserID
	Unread int
}

var adapter Adapter

// SetAdapter installs the backend every package-level helper delegates to.
// Called once at startup.
func SetAdapter(a Adapter) {
	adapter = a
}

// Current returns the installed adapter, or nil if SetAdapter was never called.
func Current() Adapter {
	return adapter
}
