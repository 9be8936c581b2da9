// Package draft keeps a student's unsubmitted answers in Redis so a session
// that drops can be resumed with its answers and its deadline intact.
package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ai-evaluator/testtaker/internal/config"
	"github.com/ai-evaluator/testtaker/internal/model"
	"github.com/ai-evaluator/testtaker/internal/session"
)

// opTimeout bounds each Redis round trip made from a session listener.
const opTimeout = 2 * time.Second

// deadlineField holds the countdown deadline as unix milliseconds.
const deadlineField = "deadline"

// Draft is what an earlier session of a student left behind.
type Draft struct {
	Answers map[int]model.Answer
	// Deadline is when the first session's countdown runs out; zero when
	// unknown or untimed.
	Deadline time.Time
}

// Empty reports whether there is nothing to resume.
func (d Draft) Empty() bool {
	return len(d.Answers) == 0 && d.Deadline.IsZero()
}

// Resume returns the session option that continues d.
func (d Draft) Resume() session.Option {
	return session.WithResume(d.Answers, d.Deadline)
}

// Store reads and writes answer drafts. Each draft is a hash keyed by
// question index with JSON-encoded answers as values, plus the deadline.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

// NewStore creates a new Store.
func NewStore(rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *Store {
	return &Store{
		rdb: rdb,
		ttl: ttl,
		log: log.With().Str("component", "draft_store").Logger(),
	}
}

// Save records one answer. An unanswered value removes the field.
func (s *Store) Save(ctx context.Context, studentID, testID string, index int, a model.Answer) error {
	key := config.CacheKey.StudentDraftKey(studentID, testID)
	field := strconv.Itoa(index)

	pipe := s.rdb.TxPipeline()
	if a.IsAnswered() {
		raw, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encode draft answer: %w", err)
		}
		pipe.HSet(ctx, key, field, raw)
	} else {
		pipe.HDel(ctx, key, field)
	}
	pipe.Expire(ctx, key, s.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save draft answer: %w", err)
	}
	return nil
}

// KeepDeadline records when the countdown runs out. The first deadline
// recorded for a draft wins, so reconnecting never extends the time limit.
func (s *Store) KeepDeadline(ctx context.Context, studentID, testID string, deadline time.Time) error {
	if deadline.IsZero() {
		return nil
	}
	key := config.CacheKey.StudentDraftKey(studentID, testID)

	pipe := s.rdb.TxPipeline()
	pipe.HSetNX(ctx, key, deadlineField, strconv.FormatInt(deadline.UnixMilli(), 10))
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("keep draft deadline: %w", err)
	}
	return nil
}

// Load returns the saved draft. Fields that do not decode are skipped.
func (s *Store) Load(ctx context.Context, studentID, testID string) (Draft, error) {
	key := config.CacheKey.StudentDraftKey(studentID, testID)

	fields, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return Draft{}, fmt.Errorf("load draft: %w", err)
	}
	return decode(fields, s.log), nil
}

func decode(fields map[string]string, log zerolog.Logger) Draft {
	d := Draft{Answers: make(map[int]model.Answer, len(fields))}
	for field, raw := range fields {
		if field == deadlineField {
			ms, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				log.Warn().Err(err).Msg("Skipping malformed draft deadline")
				continue
			}
			d.Deadline = time.UnixMilli(ms)
			continue
		}

		index, err := strconv.Atoi(field)
		if err != nil || index < 0 {
			log.Warn().Str("field", field).Msg("Skipping malformed draft field")
			continue
		}
		var a model.Answer
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			log.Warn().Err(err).Str("field", field).Msg("Skipping malformed draft answer")
			continue
		}
		if a.IsAnswered() {
			d.Answers[index] = a
		}
	}
	return d
}

// Clear deletes the draft.
func (s *Store) Clear(ctx context.Context, studentID, testID string) error {
	if err := s.rdb.Del(ctx, config.CacheKey.StudentDraftKey(studentID, testID)).Err(); err != nil {
		return fmt.Errorf("clear draft: %w", err)
	}
	return nil
}

// Listener mirrors a session into Redis: every recorded answer is saved and
// the draft is dropped once the test is submitted. Redis failures are logged
// and never reach the session.
func (s *Store) Listener(studentID, testID string) session.Listener {
	log := s.log.With().Str("student_id", studentID).Str("test_id", testID).Logger()

	return func(ev session.Event) {
		switch ev.Kind {
		case session.EventAnswer:
			ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
			defer cancel()
			if err := s.Save(ctx, studentID, testID, ev.Index, ev.Answer); err != nil {
				log.Error().Err(err).Int("index", ev.Index).Msg("Draft save failed")
			}
		case session.EventSubmitted:
			ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
			defer cancel()
			if err := s.Clear(ctx, studentID, testID); err != nil {
				log.Error().Err(err).Msg("Draft clear failed")
			}
		}
	}
}
