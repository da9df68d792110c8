// Package sqlstore is a MySQL-backed store.Adapter, used when the server is
// configured with store.adapter == "mysql". It persists everything memstore
// keeps only in memory: users, friendships, groups and message history
// survive a restart.
package sqlstore

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/go-sql-driver/mysql"
	"github.com/tinode/snowflake"

	"github.com/chatline/linechatd/internal/store"
	"github.com/chatline/linechatd/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id BIGINT PRIMARY KEY,
	username VARCHAR(32) NOT NULL UNIQUE,
	password_digest VARBINARY(255) NOT NULL,
	salt VARBINARY(64) NOT NULL,
	email VARCHAR(255) NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS invites (
	from_id BIGINT NOT NULL,
	to_id BIGINT NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (from_id, to_id)
);
CREATE TABLE IF NOT EXISTS friendships (
	a_id BIGINT NOT NULL,
	b_id BIGINT NOT NULL,
	PRIMARY KEY (a_id, b_id)
);
CREATE TABLE IF NOT EXISTS groups_ (
	id BIGINT PRIMARY KEY,
	name VARCHAR(64) NOT NULL,
	owner_id BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS group_members (
	group_id BIGINT NOT NULL,
	user_id BIGINT NOT NULL,
	PRIMARY KEY (group_id, user_id)
);
CREATE TABLE IF NOT EXISTS pm_messages (
	msg_id BIGINT PRIMARY KEY,
	pair_low BIGINT NOT NULL,
	pair_high BIGINT NOT NULL,
	from_id BIGINT NOT NULL,
	to_id BIGINT NOT NULL,
	content BLOB NOT NULL,
	ts DATETIME NOT NULL,
	INDEX (pair_low, pair_high, msg_id)
);
CREATE TABLE IF NOT EXISTS pm_unread (
	viewer_id BIGINT NOT NULL,
	peer_id BIGINT NOT NULL,
	count INT NOT NULL DEFAULT 0,
	PRIMARY KEY (viewer_id, peer_id)
);
CREATE TABLE IF NOT EXISTS gm_messages (
	msg_id BIGINT PRIMARY KEY,
	group_id BIGINT NOT NULL,
	from_id BIGINT NOT NULL,
	content BLOB NOT NULL,
	ts DATETIME NOT NULL,
	INDEX (group_id, msg_id)
);
`

// Adapter implements store.Adapter over MySQL via sqlx.
type Adapter struct {
	db   *sqlx.DB
	ids  *snowflake.Node
	open bool
}

// New constructs an unopened sqlstore adapter.
func New() *Adapter {
	return &Adapter{}
}

// Open connects to dsn and ensures the schema exists.
func (a *Adapter) Open(dsn string) error {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		return err
	}
	for _, stmt := range splitStatements(schema) {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	node, err := snowflake.NewNode(2)
	if err != nil {
		return err
	}
	a.db = db
	a.ids = node
	a.open = true
	return nil
}

// Close releases the underlying connection pool.
func (a *Adapter) Close() error {
	a.open = false
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// IsOpen reports whether Open succeeded and Close has not been called.
func (a *Adapter) IsOpen() bool { return a.open }

// GetName returns the adapter's short name.
func (a *Adapter) GetName() string { return "mysql" }

func (a *Adapter) nextID() int64 { return a.ids.Generate().Int64() }

// UserCreate creates a new user record, assigning its ID.
func (a *Adapter) UserCreate(u *types.User) error {
	u.ID = types.UserID(a.nextID())
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := a.db.Exec(
		`INSERT INTO users (id, username, password_digest, salt, email, created_at) VALUES (?,?,?,?,?,?)`,
		u.ID, u.Username, u.PasswordDigest, u.Salt, u.Email, u.CreatedAt)
	if isDuplicate(err) {
		return store.ErrConflict
	}
	return err
}

func scanUser(row interface {
	Scan(dest ...interface{}) error
}) (*types.User, error) {
	var u types.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordDigest, &u.Salt, &u.Email, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// UserGetByUsername looks up a user by username.
func (a *Adapter) UserGetByUsername(username string) (*types.User, error) {
	row := a.db.QueryRow(`SELECT id, username, password_digest, salt, email, created_at FROM users WHERE username=?`, username)
	return scanUser(row)
}

// UserGet looks up a user by ID.
func (a *Adapter) UserGet(id types.UserID) (*types.User, error) {
	row := a.db.QueryRow(`SELECT id, username, password_digest, salt, email, created_at FROM users WHERE id=?`, id)
	return scanUser(row)
}

// UserGetAll loads multiple users by ID, skipping unknown ones.
func (a *Adapter) UserGetAll(ids ...types.UserID) ([]types.User, error) {
	var out []types.User
	for _, id := range ids {
		u, err := a.UserGet(id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		} else if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, nil
}

// InviteCreate records a pending directed invite From->To.
func (a *Adapter) InviteCreate(inv *types.Invite) error {
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	_, err := a.db.Exec(`INSERT INTO invites (from_id, to_id, created_at) VALUES (?,?,?)`, inv.From, inv.To, inv.CreatedAt)
	return err
}

// InviteGet returns the pending invite From->To, or ErrNotFound.
func (a *Adapter) InviteGet(from, to types.UserID) (*types.Invite, error) {
	var inv types.Invite
	row := a.db.QueryRow(`SELECT from_id, to_id, created_at FROM invites WHERE from_id=? AND to_id=?`, from, to)
	if err := row.Scan(&inv.From, &inv.To, &inv.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// InviteDelete removes the pending invite From->To.
func (a *Adapter) InviteDelete(from, to types.UserID) error {
	_, err := a.db.Exec(`DELETE FROM invites WHERE from_id=? AND to_id=?`, from, to)
	return err
}

// FriendshipCreate records a mutual friendship between a and b.
func (a *Adapter) FriendshipCreate(x, y types.UserID) error {
	tx, err := a.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`INSERT IGNORE INTO friendships (a_id, b_id) VALUES (?,?)`, x, y); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT IGNORE INTO friendships (a_id, b_id) VALUES (?,?)`, y, x); err != nil {
		return err
	}
	return tx.Commit()
}

// FriendshipDelete removes a mutual friendship in both directions.
func (a *Adapter) FriendshipDelete(x, y types.UserID) error {
	tx, err := a.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM friendships WHERE a_id=? AND b_id=?`, x, y); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM friendships WHERE a_id=? AND b_id=?`, y, x); err != nil {
		return err
	}
	return tx.Commit()
}

// FriendshipExists reports whether a and b are friends.
func (a *Adapter) FriendshipExists(x, y types.UserID) (bool, error) {
	var n int
	err := a.db.QueryRow(`SELECT COUNT(*) FROM friendships WHERE a_id=? AND b_id=?`, x, y).Scan(&n)
	return n > 0, err
}

// FriendList returns the user ids a is friends with.
func (a *Adapter) FriendList(x types.UserID) ([]types.UserID, error) {
	var out []types.UserID
	rows, err := a.db.Query(`SELECT b_id FROM friendships WHERE a_id=? ORDER BY b_id`, x)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id types.UserID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// PendingInvitesFor returns the user ids that have invited `to`.
func (a *Adapter) PendingInvitesFor(to types.UserID) ([]types.UserID, error) {
	var out []types.UserID
	rows, err := a.db.Query(`SELECT from_id FROM invites WHERE to_id=? ORDER BY from_id`, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id types.UserID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// GroupCreate creates a group, assigning its ID, owner as first member.
func (a *Adapter) GroupCreate(g *types.Group) error {
	g.ID = types.GroupID(a.nextID())
	tx, err := a.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`INSERT INTO groups_ (id, name, owner_id) VALUES (?,?,?)`, g.ID, g.Name, g.Owner); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO group_members (group_id, user_id) VALUES (?,?)`, g.ID, g.Owner); err != nil {
		return err
	}
	for uid := range g.Members {
		if uid == g.Owner {
			continue
		}
		if _, err := tx.Exec(`INSERT IGNORE INTO group_members (group_id, user_id) VALUES (?,?)`, g.ID, uid); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GroupGet loads a group by ID.
func (a *Adapter) GroupGet(id types.GroupID) (*types.Group, error) {
	var g types.Group
	row := a.db.QueryRow(`SELECT id, name, owner_id FROM groups_ WHERE id=?`, id)
	if err := row.Scan(&g.ID, &g.Name, &g.Owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	g.Members = make(map[types.UserID]bool)
	rows, err := a.db.Query(`SELECT user_id FROM group_members WHERE group_id=?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var uid types.UserID
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		g.Members[uid] = true
	}
	return &g, rows.Err()
}

// GroupsForMember returns every group uid belongs to.
func (a *Adapter) GroupsForMember(uid types.UserID) ([]types.Group, error) {
	var ids []types.GroupID
	rows, err := a.db.Query(`SELECT group_id FROM group_members WHERE user_id=?`, uid)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id types.GroupID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	out := make([]types.Group, 0, len(ids))
	for _, id := range ids {
		g, err := a.GroupGet(id)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, nil
}

// GroupAddMember adds uid to the group's member set.
func (a *Adapter) GroupAddMember(id types.GroupID, uid types.UserID) error {
	_, err := a.db.Exec(`INSERT IGNORE INTO group_members (group_id, user_id) VALUES (?,?)`, id, uid)
	return err
}

// GroupRemoveMember removes uid from the group's member set.
func (a *Adapter) GroupRemoveMember(id types.GroupID, uid types.UserID) error {
	_, err := a.db.Exec(`DELETE FROM group_members WHERE group_id=? AND user_id=?`, id, uid)
	return err
}

// PMSave persists a PM, assigning a msg_id monotonic within the ordered pair.
func (a *Adapter) PMSave(msg *types.PMMessage) error {
	msg.MsgID = a.nextID()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	key := types.PMPair(msg.From, msg.To)
	_, err := a.db.Exec(
		`INSERT INTO pm_messages (msg_id, pair_low, pair_high, from_id, to_id, content, ts) VALUES (?,?,?,?,?,?,?)`,
		msg.MsgID, key.Low, key.High, msg.From, msg.To, msg.Content, msg.Timestamp)
	return err
}

// PMHistory returns up to limit messages between a and b, oldest first.
func (a *Adapter) PMHistory(x, y types.UserID, limit int) ([]types.PMMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	key := types.PMPair(x, y)
	rows, err := a.db.Query(
		`SELECT msg_id, from_id, to_id, content, ts FROM pm_messages
		 WHERE pair_low=? AND pair_high=? ORDER BY msg_id DESC LIMIT ?`, key.Low, key.High, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.PMMessage
	for rows.Next() {
		var m types.PMMessage
		if err := rows.Scan(&m.MsgID, &m.From, &m.To, &m.Content, &m.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// PMConversations returns, for viewer, the peers with any PM history, ordered
// most-recent-message-first, alongside the unread counter.
func (a *Adapter) PMConversations(viewer types.UserID) ([]store.PMConversation, error) {
	rows, err := a.db.Query(`
		SELECT peer, MAX(msg_id) AS last FROM (
			SELECT to_id AS peer, msg_id FROM pm_messages WHERE from_id=?
			UNION ALL
			SELECT from_id AS peer, msg_id FROM pm_messages WHERE to_id=?
		) t GROUP BY peer ORDER BY last DESC`, viewer, viewer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.PMConversation
	for rows.Next() {
		var peer types.UserID
		var last int64
		if err := rows.Scan(&peer, &last); err != nil {
			return nil, err
		}
		unread, err := a.UnreadGet(viewer, peer)
		if err != nil {
			return nil, err
		}
		out = append(out, store.PMConversation{Peer: peer, Unread: unread})
	}
	return out, rows.Err()
}

// UnreadGet returns Unread(viewer, peer).
func (a *Adapter) UnreadGet(viewer, peer types.UserID) (int, error) {
	var n int
	err := a.db.QueryRow(`SELECT count FROM pm_unread WHERE viewer_id=? AND peer_id=?`, viewer, peer).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

// UnreadIncr increments Unread(viewer, peer) by one.
func (a *Adapter) UnreadIncr(viewer, peer types.UserID) error {
	_, err := a.db.Exec(`
		INSERT INTO pm_unread (viewer_id, peer_id, count) VALUES (?,?,1)
		ON DUPLICATE KEY UPDATE count = count + 1`, viewer, peer)
	return err
}

// UnreadReset resets Unread(viewer, peer) to zero.
func (a *Adapter) UnreadReset(viewer, peer types.UserID) error {
	_, err := a.db.Exec(`
		INSERT INTO pm_unread (viewer_id, peer_id, count) VALUES (?,?,0)
		ON DUPLICATE KEY UPDATE count = 0`, viewer, peer)
	return err
}

// GMSave persists a group message, assigning a msg_id monotonic within the group.
func (a *Adapter) GMSave(msg *types.GMMessage) error {
	msg.MsgID = a.nextID()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	_, err := a.db.Exec(
		`INSERT INTO gm_messages (msg_id, group_id, from_id, content, ts) VALUES (?,?,?,?,?)`,
		msg.MsgID, msg.Group, msg.From, msg.Content, msg.Timestamp)
	return err
}

// GMHistory returns up to limit messages in the group, oldest first.
func (a *Adapter) GMHistory(group types.GroupID, limit int) ([]types.GMMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.Query(
		`SELECT msg_id, group_id, from_id, content, ts FROM gm_messages
		 WHERE group_id=? ORDER BY msg_id DESC LIMIT ?`, group, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.GMMessage
	for rows.Next() {
		var m types.GMMessage
		if err := rows.Scan(&m.MsgID, &m.Group, &m.From, &m.Content, &m.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func isDuplicate(err error) bool {
	return err != nil && (contains(err.Error(), "Duplicate entry") || contains(err.Error(), "UNIQUE"))
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && indexOf(s, substr) >= 0
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

func splitStatements(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ';' {
			stmt := s[start:i]
			if trimmed := trimSpace(stmt); trimmed != "" {
				out = append(out, trimmed)
			}
			start = i + 1
		}
	}
	return out
}

func trimSpace(s string) string {
	i, j := 0, len(s)
	for i < j && isSpace(s[i]) {
		i++
	}
	for j > i && isSpace(s[j-1]) {
		j--
	}
	return s[i:j]
}

func isSpace(b byte) bool { return b == ' ' || b == '\n' || b == '\t' || b == '\r' }

var _ store.Adapter = (*Adapter)(nil)
