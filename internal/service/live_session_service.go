package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ai-evaluator/testtaker/internal/config"
)

var (
	// ErrSessionActive is returned when the student already has the test open.
	ErrSessionActive = errors.New("test session already active")
	// ErrClaimLost means another gateway took over an expired claim.
	ErrClaimLost = errors.New("live session claimed elsewhere")
)

// LiveSessionService allows one live gateway session per student and test.
// Claims are always tracked in-process; with Redis they are also shared
// across gateway instances.
type LiveSessionService struct {
	rdb      *redis.Client
	ttl      time.Duration
	instance string

	mu   sync.Mutex
	live map[string]struct{}
}

// NewLiveSessionService creates a new LiveSessionService. rdb may be nil; ttl
// is how long a Redis claim outlives its last refresh.
func NewLiveSessionService(rdb *redis.Client, ttl time.Duration) *LiveSessionService {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &LiveSessionService{
		rdb:      rdb,
		ttl:      ttl,
		instance: uuid.New().String(),
		live:     make(map[string]struct{}),
	}
}

// Claim is one held (student, test) pair. With Redis the claim expires after
// the service TTL unless refreshed, so a crashed gateway frees it on its own.
type Claim struct {
	svc  *LiveSessionService
	key  string
	once sync.Once
}

// Acquire claims the (student, test) pair. The claim must be released when
// the session ends.
func (s *LiveSessionService) Acquire(ctx context.Context, studentID, testID string) (*Claim, error) {
	key := config.CacheKey.LiveSessionKey(studentID, testID)

	s.mu.Lock()
	if _, ok := s.live[key]; ok {
		s.mu.Unlock()
		return nil, ErrSessionActive
	}
	s.live[key] = struct{}{}
	s.mu.Unlock()

	if s.rdb != nil {
		ok, err := s.rdb.SetNX(ctx, key, s.instance, s.ttl).Result()
		if err != nil || !ok {
			s.forget(key)
			if err != nil {
				return nil, fmt.Errorf("claim live session: %w", err)
			}
			return nil, ErrSessionActive
		}
	}

	return &Claim{svc: s, key: key}, nil
}

// Refresh pushes the claim's expiry one TTL into the future.
func (c *Claim) Refresh(ctx context.Context) error {
	rdb := c.svc.rdb
	if rdb == nil {
		return nil
	}
	owner, err := rdb.Get(ctx, c.key).Result()
	if errors.Is(err, redis.Nil) {
		// Expired while we were away; take it back.
		ok, err := rdb.SetNX(ctx, c.key, c.svc.instance, c.svc.ttl).Result()
		if err != nil {
			return fmt.Errorf("refresh live session: %w", err)
		}
		if !ok {
			return ErrClaimLost
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("refresh live session: %w", err)
	}
	if owner != c.svc.instance {
		return ErrClaimLost
	}
	if err := rdb.Expire(ctx, c.key, c.svc.ttl).Err(); err != nil {
		return fmt.Errorf("refresh live session: %w", err)
	}
	return nil
}

// KeepAlive refreshes the claim three times per TTL until ctx ends.
func (c *Claim) KeepAlive(ctx context.Context, log zerolog.Logger) {
	if c.svc.rdb == nil {
		return
	}
	ticker := time.NewTicker(c.svc.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := c.Refresh(rctx)
			cancel()
			if err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("Live session refresh failed")
			}
		}
	}
}

// Release frees the claim. It is safe to call more than once.
func (c *Claim) Release() {
	c.once.Do(func() {
		c.svc.forget(c.key)
		rdb := c.svc.rdb
		if rdb == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// Only drop the claim if it is still ours.
		if owner, err := rdb.Get(ctx, c.key).Result(); err == nil && owner == c.svc.instance {
			rdb.Del(ctx, c.key)
		}
	})
}

// Active returns the number of sessions held by this instance.
func (s *LiveSessionService) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

func (s *LiveSessionService) forget(key string) {
	s.mu.Lock()
	delete(s.live, key)
	s.mu.Unlock()
}
