package redis

import (
	"context"
	"encoding/json"
	"time"

	"trivia-session-service/internal/domain"
	"trivia-session-service/internal/game"
	"github.com/redis/go-redis/v9"
)

// SessionMirror maintains a read-only operational view of the live
// session in Redis: a liveness marker plus the latest broadcast
// snapshot. Everything is best-effort; the session never reads any of
// it back, and a write failure costs nothing but staleness.
type SessionMirror struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionMirror(client *redis.Client, ttl time.Duration) *SessionMirror {
	return &SessionMirror{client: client, ttl: ttl}
}

// Run subscribes to the session like any client and mirrors each
// broadcast until ctx is cancelled or the subscription closes.
func (m *SessionMirror) Run(ctx context.Context, name string, sess *game.Session) {
	m.Mark(ctx, name)
	defer m.Clear(context.Background(), name)

	updates, cancel := sess.Subscribe("")
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Snapshot == nil {
				continue
			}
			m.Store(ctx, name, *update.Snapshot)
		}
	}
}

// Mark sets the liveness key for the named session.
func (m *SessionMirror) Mark(ctx context.Context, name string) {
	_ = m.client.Set(ctx, m.key(name), "1", m.ttl).Err()
}

// Clear removes the liveness key and the mirrored snapshot.
func (m *SessionMirror) Clear(ctx context.Context, name string) {
	_ = m.client.Del(ctx, m.key(name), m.snapshotKey(name)).Err()
}

// Store writes the latest snapshot; it also refreshes the liveness key
// so an active session never expires out of the mirror.
func (m *SessionMirror) Store(ctx context.Context, name string, snap domain.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	pipe := m.client.Pipeline()
	pipe.Set(ctx, m.snapshotKey(name), data, m.ttl)
	pipe.Set(ctx, m.key(name), "1", m.ttl)
	_, _ = pipe.Exec(ctx)
}

func (m *SessionMirror) key(name string) string {
	return "trivia:session:" + name
}

func (m *SessionMirror) snapshotKey(name string) string {
	return "trivia:session:" + name + ":snapshot"
}
