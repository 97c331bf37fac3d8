package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jomaguevco/chatdex-sub001/domain"
)

// SessionRepositoryImpl implements domain.SessionRepository using Redis.
// Keys are phone numbers; records carry no Redis TTL because expiry only
// resets a session to idle, it never removes the record. The periodic sweep
// in the app layer handles expired sessions.
type SessionRepositoryImpl struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewSessionRepository creates a session repository. ttl is the idle window
// stamped on every saved session as its ExpiresAt.
func NewSessionRepository(client *redis.Client, ttl time.Duration) domain.SessionRepository {
	return &SessionRepositoryImpl{
		client: client,
		prefix: "sess:",
		ttl:    ttl,
	}
}

// Get implements domain.SessionRepository. A phone without a record gets a
// fresh idle session, created lazily and persisted.
func (r *SessionRepositoryImpl) Get(ctx context.Context, phone string) (*domain.Session, error) {
	key := r.prefix + phone
	data, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		session := r.newIdleSession(phone)
		if err := r.Save(ctx, session); err != nil {
			return nil, err
		}
		return session, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// Save implements domain.SessionRepository.
func (r *SessionRepositoryImpl) Save(ctx context.Context, session *domain.Session) error {
	session.UpdatedAt = time.Now()
	session.ExpiresAt = session.UpdatedAt.Add(r.ttl)
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return r.client.Set(ctx, r.prefix+session.Phone, data, 0).Err()
}

// SetState implements domain.SessionRepository.
func (r *SessionRepositoryImpl) SetState(ctx context.Context, phone string, state domain.ConvState, order *domain.PendingOrder) error {
	session, err := r.Get(ctx, phone)
	if err != nil {
		return err
	}
	session.State = state
	session.CurrentOrder = order
	return r.Save(ctx, session)
}

// Clear implements domain.SessionRepository: the session is reset to idle
// with a nulled order payload; the record itself is kept.
func (r *SessionRepositoryImpl) Clear(ctx context.Context, phone string) error {
	session, err := r.Get(ctx, phone)
	if err != nil {
		return err
	}
	session.State = domain.StateIdle
	session.CurrentOrder = nil
	return r.Save(ctx, session)
}

// ActivePhones implements domain.SessionRepository by scanning session keys.
func (r *SessionRepositoryImpl) ActivePhones(ctx context.Context) ([]string, error) {
	var phones []string
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		phones = append(phones, iter.Val()[len(r.prefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}
	return phones, nil
}

func (r *SessionRepositoryImpl) newIdleSession(phone string) *domain.Session {
	now := time.Now()
	return &domain.Session{
		Phone:     phone,
		State:     domain.StateIdle,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(r.ttl),
	}
}
