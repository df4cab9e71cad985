package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/Enzo1603/nethz/internal/domain"
	"github.com/Enzo1603/nethz/internal/errors"
	"github.com/Enzo1603/nethz/internal/event"
	"github.com/Enzo1603/nethz/internal/highscore"
)

const (
	publishInterval = 200 * time.Millisecond
)

// ParseField maps an API highscore field name (e.g. "capitals_highscore") to
// its game mode.
func ParseField(field string) (domain.Mode, bool) {
	mode := domain.Mode(strings.TrimSuffix(field, "_highscore"))
	if !strings.HasSuffix(field, "_highscore") || !mode.Valid() {
		return "", false
	}
	return mode, true
}

type Config struct {
	EventBus *event.Bus
	DB       *pgxpool.Pool
	Redis    redis.UniversalClient
	Prefix   string
}

// Service ranks players by their persisted highscores. The ranking is served
// from per-mode Redis sorted sets which mirror the users table: warmed once at
// startup and kept fresh by subscribing to highscore.updated events.
type Service struct {
	eb     *event.Bus
	db     *pgxpool.Pool
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		db:     c.DB,
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	s.eb.Subscribe(domain.EventNameHighscoreUpdated, func(ctx context.Context, e event.Event) error {
		return s.UpdateLeaderboard(ctx, e.(domain.EventHighscoreUpdated))
	})

	return s
}

// WarmUp seeds the Redis mirrors from the users table.
func (s *Service) WarmUp(ctx context.Context) error {
	for _, mode := range domain.Modes {
		col, _ := highscore.Column(mode)

		rows, err := s.db.Query(ctx, fmt.Sprintf(
			`SELECT username, %s FROM users WHERE %s > 0;`, col, col))
		if err != nil {
			return fmt.Errorf("leaderboard: warm up %s: %w", mode, err)
		}

		entries, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (redis.Z, error) {
			var (
				username string
				score    int
			)
			if err := r.Scan(&username, &score); err != nil {
				return redis.Z{}, err
			}
			return redis.Z{Score: float64(score), Member: username}, nil
		})
		if err != nil {
			return fmt.Errorf("leaderboard: warm up %s: %w", mode, err)
		}

		if len(entries) == 0 {
			continue
		}

		if err := s.redis.ZAdd(ctx, s.leaderboardKey(mode), entries...).Err(); err != nil {
			return fmt.Errorf("leaderboard: warm up %s: %w", mode, err)
		}
	}

	return nil
}

type TopRequest struct {
	Field string
	N     int
}

// Top returns up to N players ordered by the named highscore field descending,
// ties broken by username ascending. An unknown field name is a not-found.
func (s *Service) Top(ctx context.Context, req TopRequest) (*domain.Leaderboard, error) {
	mode, ok := ParseField(req.Field)
	if !ok {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("unknown highscore field %q", req.Field))
	}

	res, err := s.redis.ZRevRangeWithScores(ctx, s.leaderboardKey(mode), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard: get %s: %w", mode, err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for _, z := range res {
		entries = append(entries, domain.LeaderboardEntry{
			Username:  z.Member.(string),
			Highscore: int(z.Score),
		})
	}

	// Redis orders equal scores by member, but in reverse for ZREVRANGE.
	// Re-sort so ties come out username ascending.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Highscore != entries[j].Highscore {
			return entries[i].Highscore > entries[j].Highscore
		}
		return entries[i].Username < entries[j].Username
	})

	if req.N > 0 && len(entries) > req.N {
		entries = entries[:req.N]
	}

	return &domain.Leaderboard{
		Mode:    mode,
		Entries: entries,
	}, nil
}

// UpdateLeaderboard overwrites the user's score in the mode's mirror.
func (s *Service) UpdateLeaderboard(ctx context.Context, e domain.EventHighscoreUpdated) error {
	if err := s.redis.ZAdd(ctx, s.leaderboardKey(e.Mode), redis.Z{
		Score:  float64(e.Highscore),
		Member: e.Username,
	}).Err(); err != nil {
		return fmt.Errorf("leaderboard: update %s: %w", e.Mode, err)
	}

	return s.schedulePublishLeaderboard(ctx, e.Mode)
}

// schedulePublishLeaderboard publishes leaderboard changes at most once per
// interval. Bursts of highscore updates then collapse into a single event.
func (s *Service) schedulePublishLeaderboard(ctx context.Context, mode domain.Mode) error {
	ok, err := s.redis.SetNX(ctx, s.publishTimeKey(mode), time.Now().UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("leaderboard: setnx: %w", err)
	}

	if !ok {
		return nil
	}

	return s.publishLeaderboard(ctx, mode)
}

func (s *Service) publishLeaderboard(ctx context.Context, mode domain.Mode) error {
	col, _ := highscore.Column(mode)
	l, err := s.Top(ctx, TopRequest{Field: col})
	if err != nil {
		return fmt.Errorf("leaderboard: publish %s: %w", mode, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return nil
}

func (s *Service) leaderboardKey(mode domain.Mode) string {
	return fmt.Sprintf("%s:leaderboard:%s", s.prefix, mode)
}

func (s *Service) publishTimeKey(mode domain.Mode) string {
	return fmt.Sprintf("%s:leaderboard:%s:time", s.prefix, mode)
}
