// Package chat implements the data-domain operations (accounts, friendships,
// groups) and the real-time delivery fabric (PM push eligibility, GM
// LiveRooms) for this server's line-protocol PMs and group rooms.
package chat

import (
	"crypto/rand"
	"strconv"
	"sync"
	"time"

	"github.com/chatline/linechatd/internal/metrics"
	"github.com/chatline/linechatd/internal/session"
	"github.com/chatline/linechatd/internal/store"
	"github.com/chatline/linechatd/internal/types"
)

// Service bundles the store, session registry and metrics every handler
// needs. It owns friendship, group and live-delivery business logic inline
// on whichever connection's goroutine issued the request, since there is no
// separate per-room goroutine — callers rely on the documented lock order
// instead (Store's internal locks, then roomsMu, then any Conn.send_mutex).
type Service struct {
	Store    store.Adapter
	Sessions *session.Registry
	Metrics  *metrics.Metrics

	// roomsMu guards rooms, the GM LiveRoom membership sets. Acquired after
	// Store's internal locks and before any Conn.send_mutex.
	roomsMu sync.Mutex
	rooms   map[types.GroupID]map[*session.Conn]bool

	historyDefaultLimit int
}

// NewService wires a Service over an already-open store adapter.
func NewService(st store.Adapter, sessions *session.Registry, m *metrics.Metrics) *Service {
	return &Service{
		Store:               st,
		Sessions:            sessions,
		Metrics:             m,
		rooms:               make(map[types.GroupID]map[*session.Conn]bool),
		historyDefaultLimit: 50,
	}
}

func randomSalt() ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

func now() time.Time { return time.Now().UTC() }

// timestampLayout is the wire format for ts= fields: RFC3339 in UTC.
const timestampLayout = time.RFC3339

// indexedKey builds the "<prefix>_<i>" field key list replies use to carry
// one entry per array position, since the wire format has no nested
// structure and a bare repeated key would let "last wins" discard all but
// the final entry.
func indexedKey(prefix string, i int) string {
	return prefix + "_" + strconv.Itoa(i)
}

// recordError increments the per-code error counter, if metrics are wired.
func (s *Service) recordError(code int) {
	if s.Metrics == nil {
		return
	}
	s.Metrics.ErrorsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}

// recordPush increments the per-subject push counter, if metrics are wired.
func (s *Service) recordPush(subject string) {
	if s.Metrics == nil {
		return
	}
	s.Metrics.PushesTotal.WithLabelValues(subject).Inc()
}
