package chat

import (
	"errors"
	"sort"

	"github.com/chatline/linechatd/internal/proto"
	"github.com/chatline/linechatd/internal/store"
	"github.com/chatline/linechatd/internal/types"
)

// GroupCreate creates a group owned by self.
func (s *Service) GroupCreate(self types.UserID, name string) proto.Result {
	if name == "" {
		return proto.BadRequest("missing name")
	}
	g := &types.Group{Name: name, Owner: self, Members: map[types.UserID]bool{self: true}}
	if err := s.Store.GroupCreate(g); err != nil {
		return proto.Internal("could not create group")
	}
	return proto.Success(proto.FInt("group_id", int64(g.ID)))
}

func (s *Service) loadGroup(id types.GroupID) (*types.Group, proto.Result, bool) {
	g, err := s.Store.GroupGet(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, proto.NotFound("no such group"), false
		}
		return nil, proto.Internal("lookup failed"), false
	}
	return g, proto.Result{}, true
}

// GroupAdd adds username to group_id's membership. Owner-only.
func (s *Service) GroupAdd(self types.UserID, groupID types.GroupID, username string) proto.Result {
	g, fail, ok := s.loadGroup(groupID)
	if !ok {
		return fail
	}
	if g.Owner != self {
		return proto.Forbidden("only the owner may add members")
	}
	u, fail, ok := s.resolveUsername(username)
	if !ok {
		return fail
	}
	if g.HasMember(u.ID) {
		return proto.Conflict("already a member")
	}
	if err := s.Store.GroupAddMember(groupID, u.ID); err != nil {
		return proto.Internal("could not add member")
	}
	return proto.Success()
}

// GroupRemove removes username from group_id, owner-only, triggering the
// kick path for any of their connections live in the group's LiveRoom. The
// owner cannot remove itself this way.
func (s *Service) GroupRemove(self types.UserID, groupID types.GroupID, username string) proto.Result {
	g, fail, ok := s.loadGroup(groupID)
	if !ok {
		return fail
	}
	if g.Owner != self {
		return proto.Forbidden("only the owner may remove members")
	}
	u, fail, ok := s.resolveUsername(username)
	if !ok {
		return fail
	}
	if u.ID == g.Owner {
		return proto.BadRequest("the owner cannot be removed")
	}
	if !g.HasMember(u.ID) {
		return proto.NotFound("not a member")
	}
	if err := s.Store.GroupRemoveMember(groupID, u.ID); err != nil {
		return proto.Internal("could not remove member")
	}
	s.kickFromRoom(groupID, u.ID)
	return proto.Success()
}

// GroupLeave lets a non-owner member leave voluntarily.
func (s *Service) GroupLeave(self types.UserID, groupID types.GroupID) proto.Result {
	g, fail, ok := s.loadGroup(groupID)
	if !ok {
		return fail
	}
	if !g.HasMember(self) {
		return proto.Forbidden("not a member")
	}
	if g.Owner == self {
		return proto.BadRequest("the owner cannot leave")
	}
	if err := s.Store.GroupRemoveMember(groupID, self); err != nil {
		return proto.Internal("could not leave group")
	}
	s.kickFromRoom(groupID, self)
	return proto.Success()
}

// GroupList returns the groups self belongs to.
func (s *Service) GroupList(self types.UserID) proto.Result {
	groups, err := s.Store.GroupsForMember(self)
	if err != nil {
		return proto.Internal("lookup failed")
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })

	fields := make([]proto.KV, 0, len(groups)*2+1)
	fields = append(fields, proto.FInt("count", int64(len(groups))))
	for i, g := range groups {
		fields = append(fields,
			proto.FInt(indexedKey("group_id", i), int64(g.ID)),
			proto.F(indexedKey("name", i), g.Name),
		)
	}
	return proto.Success(fields...)
}

// GroupMembers lists group_id's members, restricted to members.
func (s *Service) GroupMembers(self types.UserID, groupID types.GroupID) proto.Result {
	g, fail, ok := s.loadGroup(groupID)
	if !ok {
		return fail
	}
	if !g.HasMember(self) {
		return proto.Forbidden("not a member")
	}

	ids := make([]types.UserID, 0, len(g.Members))
	for id := range g.Members {
		ids = append(ids, id)
	}
	users, err := s.Store.UserGetAll(ids...)
	if err != nil {
		return proto.Internal("lookup failed")
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })

	fields := make([]proto.KV, 0, len(users)+1)
	fields = append(fields, proto.FInt("count", int64(len(users))))
	for i, u := range users {
		fields = append(fields, proto.F(indexedKey("member", i), u.Username))
	}
	return proto.Success(fields...)
}
