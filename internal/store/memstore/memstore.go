// Package memstore is the default, in-process store.Adapter: maps guarded by
// mutexes, no external dependency. It backs every package test and is the
// adapter used when the config selects "mem".
package memstore

import (
	"sort"
	"sync"

	"github.com/tinode/snowflake"

	"github.com/chatline/linechatd/internal/store"
	"github.com/chatline/linechatd/internal/types"
)

// Adapter implements store.Adapter over in-memory maps.
type Adapter struct {
	mu sync.Mutex

	open bool

	ids *snowflake.Node

	usersByID   map[types.UserID]*types.User
	usersByName map[string]types.UserID

	// invites[from][to] = invite
	invites map[types.UserID]map[types.UserID]*types.Invite
	// friends[a] = set of friend ids
	friends map[types.UserID]map[types.UserID]bool

	groups     map[types.GroupID]*types.Group
	groupSeq   int64
	groupMutex sync.Mutex

	// pm[pairKey] = ordered history
	pm map[types.PMPairKey][]types.PMMessage
	// unread[viewer][peer] = count
	unread map[types.UserID]map[types.UserID]int

	gm map[types.GroupID][]types.GMMessage
}

// New constructs an unopened memstore adapter.
func New() *Adapter {
	return &Adapter{}
}

// Open initializes the adapter's state. config is ignored for memstore.
func (a *Adapter) Open(config string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}
	a.ids = node

	a.usersByID = make(map[types.UserID]*types.User)
	a.usersByName = make(map[string]types.UserID)
	a.invites = make(map[types.UserID]map[types.UserID]*types.Invite)
	a.friends = make(map[types.UserID]map[types.UserID]bool)
	a.groups = make(map[types.GroupID]*types.Group)
	a.pm = make(map[types.PMPairKey][]types.PMMessage)
	a.unread = make(map[types.UserID]map[types.UserID]int)
	a.gm = make(map[types.GroupID][]types.GMMessage)
	a.open = true
	return nil
}

// Close releases the adapter's state.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.open = false
	return nil
}

// IsOpen reports whether Open succeeded and Close has not been called.
func (a *Adapter) IsOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.open
}

// GetName returns the adapter's short name.
func (a *Adapter) GetName() string { return "mem" }

func (a *Adapter) nextID() int64 {
	return a.ids.Generate().Int64()
}

// UserCreate creates a new user record, assigning its ID.
func (a *Adapter) UserCreate(u *types.User) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, dup := a.usersByName[u.Username]; dup {
		return store.ErrConflict
	}

	u.ID = types.UserID(a.nextID())
	cp := *u
	a.usersByID[u.ID] = &cp
	a.usersByName[u.Username] = u.ID
	return nil
}

// UserGetByUsername looks up a user by username.
func (a *Adapter) UserGetByUsername(username string) (*types.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id, ok := a.usersByName[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a.usersByID[id]
	return &cp, nil
}

// UserGet looks up a user by ID.
func (a *Adapter) UserGet(id types.UserID) (*types.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	u, ok := a.usersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// UserGetAll loads multiple users by ID, skipping unknown ones.
func (a *Adapter) UserGetAll(ids ...types.UserID) ([]types.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []types.User
	for _, id := range ids {
		if u, ok := a.usersByID[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

// InviteCreate records a pending directed invite From->To.
func (a *Adapter) InviteCreate(inv *types.Invite) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.invites[inv.From] == nil {
		a.invites[inv.From] = make(map[types.UserID]*types.Invite)
	}
	cp := *inv
	a.invites[inv.From][inv.To] = &cp
	return nil
}

// InviteGet returns the pending invite From->To, or ErrNotFound.
func (a *Adapter) InviteGet(from, to types.UserID) (*types.Invite, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	m := a.invites[from]
	if m == nil {
		return nil, store.ErrNotFound
	}
	inv, ok := m[to]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

// InviteDelete removes the pending invite From->To.
func (a *Adapter) InviteDelete(from, to types.UserID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if m := a.invites[from]; m != nil {
		delete(m, to)
	}
	return nil
}

// FriendshipCreate records a mutual friendship between a and b.
func (a *Adapter) FriendshipCreate(x, y types.UserID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.friends[x] == nil {
		a.friends[x] = make(map[types.UserID]bool)
	}
	if a.friends[y] == nil {
		a.friends[y] = make(map[types.UserID]bool)
	}
	a.friends[x][y] = true
	a.friends[y][x] = true
	return nil
}

// FriendshipDelete removes a mutual friendship in both directions.
func (a *Adapter) FriendshipDelete(x, y types.UserID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.friends[x] != nil {
		delete(a.friends[x], y)
	}
	if a.friends[y] != nil {
		delete(a.friends[y], x)
	}
	return nil
}

// FriendshipExists reports whether a and b are friends.
func (a *Adapter) FriendshipExists(x, y types.UserID) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.friends[x] != nil && a.friends[x][y], nil
}

// FriendList returns the user ids a is friends with.
func (a *Adapter) FriendList(x types.UserID) ([]types.UserID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []types.UserID
	for id := range a.friends[x] {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// PendingInvitesFor returns the user ids that have invited `to`.
func (a *Adapter) PendingInvitesFor(to types.UserID) ([]types.UserID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []types.UserID
	for from, m := range a.invites {
		if _, ok := m[to]; ok {
			out = append(out, from)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// GroupCreate creates a group, assigning its ID, owner as first member.
func (a *Adapter) GroupCreate(g *types.Group) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	g.ID = types.GroupID(a.nextID())
	members := make(map[types.UserID]bool, len(g.Members)+1)
	for uid := range g.Members {
		members[uid] = true
	}
	members[g.Owner] = true

	cp := &types.Group{ID: g.ID, Name: g.Name, Owner: g.Owner, Members: members}
	a.groups[g.ID] = cp
	return nil
}

// GroupGet loads a group by ID.
func (a *Adapter) GroupGet(id types.GroupID) (*types.Group, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	g, ok := a.groups[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	members := make(map[types.UserID]bool, len(g.Members))
	for uid := range g.Members {
		members[uid] = true
	}
	return &types.Group{ID: g.ID, Name: g.Name, Owner: g.Owner, Members: members}, nil
}

// GroupsForMember returns every group uid belongs to.
func (a *Adapter) GroupsForMember(uid types.UserID) ([]types.Group, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []types.Group
	for _, g := range a.groups {
		if !g.Members[uid] {
			continue
		}
		members := make(map[types.UserID]bool, len(g.Members))
		for id := range g.Members {
			members[id] = true
		}
		out = append(out, types.Group{ID: g.ID, Name: g.Name, Owner: g.Owner, Members: members})
	}
	return out, nil
}

// GroupAddMember adds uid to the group's member set.
func (a *Adapter) GroupAddMember(id types.GroupID, uid types.UserID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	g, ok := a.groups[id]
	if !ok {
		return store.ErrNotFound
	}
	g.Members[uid] = true
	return nil
}

// GroupRemoveMember removes uid from the group's member set.
func (a *Adapter) GroupRemoveMember(id types.GroupID, uid types.UserID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	g, ok := a.groups[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(g.Members, uid)
	return nil
}

// PMSave persists a PM, assigning a msg_id monotonic within the ordered pair.
func (a *Adapter) PMSave(msg *types.PMMessage) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	msg.MsgID = a.nextID()
	key := types.PMPair(msg.From, msg.To)
	a.pm[key] = append(a.pm[key], *msg)
	return nil
}

// PMHistory returns up to limit messages between a and b, oldest first.
func (a *Adapter) PMHistory(x, y types.UserID, limit int) ([]types.PMMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	all := a.pm[types.PMPair(x, y)]
	if limit <= 0 {
		limit = 50
	}
	if len(all) <= limit {
		out := make([]types.PMMessage, len(all))
		copy(out, all)
		return out, nil
	}
	out := make([]types.PMMessage, limit)
	copy(out, all[len(all)-limit:])
	return out, nil
}

// PMConversations returns, for viewer, the peers with any PM history, ordered
// most-recent-message-first, alongside the unread counter.
func (a *Adapter) PMConversations(viewer types.UserID) ([]store.PMConversation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	type cand struct {
		peer types.UserID
		last int64
	}
	var cands []cand
	for key, msgs := range a.pm {
		var peer types.UserID
		if key.Low == viewer {
			peer = key.High
		} else if key.High == viewer {
			peer = key.Low
		} else {
			continue
		}
		if len(msgs) == 0 {
			continue
		}
		cands = append(cands, cand{peer: peer, last: msgs[len(msgs)-1].MsgID})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].last > cands[j].last })

	out := make([]store.PMConversation, 0, len(cands))
	for _, c := range cands {
		out = append(out, store.PMConversation{Peer: c.peer, Unread: a.unread[viewer][c.peer]})
	}
	return out, nil
}

// UnreadGet returns Unread(viewer, peer).
func (a *Adapter) UnreadGet(viewer, peer types.UserID) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.unread[viewer][peer], nil
}

// UnreadIncr increments Unread(viewer, peer) by one.
func (a *Adapter) UnreadIncr(viewer, peer types.UserID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.unread[viewer] == nil {
		a.unread[viewer] = make(map[types.UserID]int)
	}
	a.unread[viewer][peer]++
	return nil
}

// UnreadReset resets Unread(viewer, peer) to zero.
func (a *Adapter) UnreadReset(viewer, peer types.UserID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.unread[viewer] == nil {
		a.unread[viewer] = make(map[types.UserID]int)
	}
	a.unread[viewer][peer] = 0
	return nil
}

// GMSave persists a group message, assigning a msg_id monotonic within the group.
func (a *Adapter) GMSave(msg *types.GMMessage) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	msg.MsgID = a.nextID()
	a.gm[msg.Group] = append(a.gm[msg.Group], *msg)
	return nil
}

// GMHistory returns up to limit messages in the group, oldest first.
func (a *Adapter) GMHistory(group types.GroupID, limit int) ([]types.GMMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	all := a.gm[group]
	if limit <= 0 {
		limit = 50
	}
	if len(all) <= limit {
		out := make([]types.GMMessage, len(all))
		copy(out, all)
		return out, nil
	}
	out := make([]types.GMMessage, limit)
	copy(out, all[len(all)-limit:])
	return out, nil
}

var _ store.Adapter = (*Adapter)(nil)
