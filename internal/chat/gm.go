package chat

import (
	"github.com/chatline/linechatd/internal/proto"
	"github.com/chatline/linechatd/internal/session"
	"github.com/chatline/linechatd/internal/types"
)

// roomSnapshot copies the LiveRoom membership for group under roomsMu and
// returns it; callers push to connections only after releasing the lock, so
// a blocking write never holds roomsMu.
func (s *Service) roomSnapshot(group types.GroupID) []*session.Conn {
	s.roomsMu.Lock()
	defer s.roomsMu.Unlock()

	room := s.rooms[group]
	out := make([]*session.Conn, 0, len(room))
	for c := range room {
		out = append(out, c)
	}
	return out
}

func (s *Service) joinRoom(group types.GroupID, c *session.Conn) {
	s.roomsMu.Lock()
	defer s.roomsMu.Unlock()

	if s.rooms[group] == nil {
		s.rooms[group] = make(map[*session.Conn]bool)
	}
	s.rooms[group][c] = true
}

func (s *Service) leaveRoom(group types.GroupID, c *session.Conn) bool {
	s.roomsMu.Lock()
	defer s.roomsMu.Unlock()

	room := s.rooms[group]
	if room == nil || !room[c] {
		return false
	}
	delete(room, c)
	return true
}

// leaveAllRooms removes c from every LiveRoom it belongs to, used on
// disconnect/close since a connection's ChatFocus names at most one group
// but a stale room entry must never survive a closed connection.
func (s *Service) leaveAllRooms(c *session.Conn) {
	focus := c.ClearFocus()
	if focus.Kind != types.FocusGM {
		return
	}
	if s.leaveRoom(focus.Group, c) {
		s.broadcastExcept(focus.Group, c, proto.PushLine("GM_LEAVE",
			proto.FInt("group_id", int64(focus.Group)),
			proto.F("username", s.usernameOfConn(c)),
		))
	}
}

// kickFromRoom pushes GM_KICKED to uid's connection if it is live in group's
// LiveRoom, removes it from the room and clears its focus.
func (s *Service) kickFromRoom(group types.GroupID, uid types.UserID) {
	sess, ok := s.Sessions.SessionForUser(uid)
	if !ok {
		return
	}
	c := sess.Conn
	if c.Focus().Kind != types.FocusGM || c.Focus().Group != group {
		return
	}
	c.ClearFocus()
	if s.leaveRoom(group, c) {
		c.WriteLine(proto.PushLine("GM_KICKED", proto.FInt("group_id", int64(group))))
	}
}

// usernameOfConn resolves c's bound session to a username, for presence
// pushes (GM_LEAVE on involuntary close) that don't have the caller's
// username available from the original request.
func (s *Service) usernameOfConn(c *session.Conn) string {
	token := c.Token()
	if token == "" {
		return ""
	}
	uid, err := s.Sessions.Validate(token)
	if err != nil {
		return ""
	}
	u, err := s.Store.UserGet(uid)
	if err != nil {
		return ""
	}
	return u.Username
}

// broadcastExcept writes line to every connection in group's LiveRoom other
// than except (except may be nil to address the whole room).
func (s *Service) broadcastExcept(group types.GroupID, except *session.Conn, line string) {
	for _, c := range s.roomSnapshot(group) {
		if c == except {
			continue
		}
		c.WriteLine(line)
		s.recordPush(line)
	}
}

// GMChatStart joins the caller's connection to group_id's LiveRoom, requires
// membership, and returns recent history.
func (s *Service) GMChatStart(self types.UserID, selfUsername string, conn *session.Conn, groupID types.GroupID) proto.Result {
	g, fail, ok := s.loadGroup(groupID)
	if !ok {
		return fail
	}
	if !g.HasMember(self) {
		return proto.Forbidden("not a member")
	}

	conn.SetFocus(types.ChatFocus{Kind: types.FocusGM, Group: groupID})
	s.joinRoom(groupID, conn)

	history, err := s.Store.GMHistory(groupID, s.historyDefaultLimit)
	if err != nil {
		return proto.Internal("could not load history")
	}

	s.broadcastExcept(groupID, conn, proto.PushLine("GM_JOIN",
		proto.FInt("group_id", int64(groupID)),
		proto.F("username", selfUsername),
	))

	return proto.Success(gmHistoryFields(history)...)
}

// GMChatEnd removes the caller's connection from its LiveRoom.
func (s *Service) GMChatEnd(selfUsername string, conn *session.Conn) proto.Result {
	focus := conn.ClearFocus()
	if focus.Kind != types.FocusGM {
		return proto.Success()
	}
	if s.leaveRoom(focus.Group, conn) {
		s.broadcastExcept(focus.Group, conn, proto.PushLine("GM_LEAVE",
			proto.FInt("group_id", int64(focus.Group)),
			proto.F("username", selfUsername),
		))
	}
	return proto.Success()
}

// GMSend persists a group message and fans it out to the LiveRoom, excluding
// the sender's own connection.
func (s *Service) GMSend(self types.UserID, selfUsername string, conn *session.Conn, groupID types.GroupID, content []byte) proto.Result {
	g, fail, ok := s.loadGroup(groupID)
	if !ok {
		return fail
	}
	if !g.HasMember(self) {
		return proto.Forbidden("not a member")
	}

	msg := &types.GMMessage{Group: groupID, From: self, Content: content, Timestamp: now()}
	if err := s.Store.GMSave(msg); err != nil {
		return proto.Internal("could not save message")
	}
	if s.Metrics != nil {
		s.Metrics.GMSentTotal.Inc()
	}

	s.broadcastExcept(groupID, conn, proto.PushLine("GM",
		proto.FInt("group_id", int64(groupID)),
		proto.F("from", selfUsername),
		proto.F("content", proto.EncodeContent(msg.Content)),
		proto.FInt("msg_id", msg.MsgID),
		proto.F("ts", msg.Timestamp.Format(timestampLayout)),
	))

	return proto.Success(proto.FInt("msg_id", msg.MsgID))
}

// GMHistory returns the last `limit` group messages, requires membership.
func (s *Service) GMHistory(self types.UserID, groupID types.GroupID, limit int) proto.Result {
	g, fail, ok := s.loadGroup(groupID)
	if !ok {
		return fail
	}
	if !g.HasMember(self) {
		return proto.Forbidden("not a member")
	}
	if limit <= 0 {
		limit = s.historyDefaultLimit
	}
	history, err := s.Store.GMHistory(groupID, limit)
	if err != nil {
		return proto.Internal("could not load history")
	}
	return proto.Success(gmHistoryFields(history)...)
}

func gmHistoryFields(history []types.GMMessage) []proto.KV {
	fields := make([]proto.KV, 0, len(history)*4+1)
	fields = append(fields, proto.FInt("count", int64(len(history))))
	for i, m := range history {
		fields = append(fields,
			proto.FInt(indexedKey("msg_id", i), m.MsgID),
			proto.FInt(indexedKey("from", i), int64(m.From)),
			proto.F(indexedKey("content", i), proto.EncodeContent(m.Content)),
			proto.F(indexedKey("ts", i), m.Timestamp.Format(timestampLayout)),
		)
	}
	return fields
}
