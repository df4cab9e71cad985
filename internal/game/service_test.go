package game_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Enzo1603/nethz/internal/dataset"
	"github.com/Enzo1603/nethz/internal/domain"
	"github.com/Enzo1603/nethz/internal/errors"
	"github.com/Enzo1603/nethz/internal/game"
	"github.com/Enzo1603/nethz/internal/session"
)

func TestService_Start(t *testing.T) {
	t.Parallel()

	s, _, _ := makeService(t)
	ctx := context.Background()

	tests := map[string]struct {
		mode   domain.Mode
		region string

		wantErrCode errors.Code
	}{
		"capitals worldwide":  {mode: domain.ModeCapitals, region: "worldwide"},
		"languages europe":    {mode: domain.ModeLanguages, region: "europe"},
		"currencies americas": {mode: domain.ModeCurrencies, region: "americas"},
		"areas asia":          {mode: domain.ModeAreas, region: "asia"},
		"unknown region":      {mode: domain.ModeCapitals, region: "atlantis", wantErrCode: errors.CodeNotFound},
		"unknown mode":        {mode: domain.Mode("flags"), region: "worldwide", wantErrCode: errors.CodeNotFound},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			resp, err := s.Start(ctx, game.StartRequest{
				SessionID: "sid-" + name,
				Username:  "u1",
				Mode:      tt.mode,
				Region:    tt.region,
			})

			if tt.wantErrCode != 0 {
				require.Error(t, err)
				require.True(t, errors.IsCode(err, tt.wantErrCode), "unexpected error: %v", err)
				return
			}

			require.NoError(t, err)
			require.Zero(t, resp.Score, "a fresh game starts at score 0")

			if tt.mode == domain.ModeAreas {
				require.NotNil(t, resp.Country1)
				require.NotNil(t, resp.Country2)
				require.NotEqual(t, resp.Country1.CCA3, resp.Country2.CCA3)
				require.True(t, resp.Country1.Area.IsPositive())
				require.True(t, resp.Country2.Area.IsPositive())
				require.Empty(t, resp.Choices)
			} else {
				require.NotNil(t, resp.Country)
				require.Len(t, resp.Choices, 4)
			}
		})
	}
}

func TestService_Start_PreservesStreak(t *testing.T) {
	t.Parallel()

	s, store, _ := makeService(t)
	ctx := context.Background()

	seedGame(t, store, "sid", domain.GameState{
		Mode:    domain.ModeCapitals,
		Region:  "worldwide",
		Country: switzerland(),
		Score:   3,
	})

	resp, err := s.Start(ctx, game.StartRequest{
		SessionID: "sid",
		Username:  "u1",
		Mode:      domain.ModeCapitals,
		Region:    "worldwide",
	})
	require.NoError(t, err)
	require.Equal(t, 3, resp.Score, "continuing a game keeps the streak")
}

func TestService_Submit_SingleAnswerGames(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		choice string

		wantCorrect bool
		wantScore   int
	}{
		"exact correct answer":            {choice: "bern", wantCorrect: true, wantScore: 4},
		"correct answer any case":         {choice: "BeRn", wantCorrect: true, wantScore: 4},
		"correct answer extra whitespace": {choice: "  Bern ", wantCorrect: true, wantScore: 4},
		"wrong answer resets streak":      {choice: "paris", wantCorrect: false, wantScore: 0},
		"empty answer resets streak":      {choice: "", wantCorrect: false, wantScore: 0},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s, store, _ := makeService(t)
			ctx := context.Background()

			seedGame(t, store, "sid", domain.GameState{
				Mode:    domain.ModeCapitals,
				Region:  "worldwide",
				Country: switzerland(),
				Score:   3,
			})

			resp, err := s.Submit(ctx, game.SubmitRequest{
				SessionID: "sid",
				Username:  "u1",
				Mode:      domain.ModeCapitals,
				Choice:    tt.choice,
			})
			require.NoError(t, err)

			require.Equal(t, tt.wantCorrect, resp.IsCorrect)
			require.Equal(t, tt.wantScore, resp.Score)
			require.Equal(t, "BERN", resp.CorrectAnswers)
			require.NotNil(t, resp.Country, "a new prompt must be drawn")
			require.Len(t, resp.Choices, 4)
		})
	}
}

func TestService_Submit_AnyFlattenedTokenCounts(t *testing.T) {
	t.Parallel()

	s, store, _ := makeService(t)
	ctx := context.Background()

	southAfrica := &domain.Country{
		CommonName: "South Africa",
		CCA3:       "ZAF",
		Region:     "Africa",
		Capitals:   "Pretoria, Cape Town, Bloemfontein",
		Area:       decimal.RequireFromString("1221037"),
	}

	for _, choice := range []string{"pretoria", "Cape  Town", "BLOEMFONTEIN"} {
		seedGame(t, store, "sid-"+choice, domain.GameState{
			Mode:    domain.ModeCapitals,
			Region:  "africa",
			Country: southAfrica,
		})

		resp, err := s.Submit(ctx, game.SubmitRequest{
			SessionID: "sid-" + choice,
			Username:  "u1",
			Mode:      domain.ModeCapitals,
			Choice:    choice,
		})
		require.NoError(t, err)
		require.True(t, resp.IsCorrect, "any one of several capitals counts: %q", choice)
		require.Equal(t, 1, resp.Score)
		require.Equal(t, "PRETORIA, CAPE TOWN, BLOEMFONTEIN", resp.CorrectAnswers)
	}
}

func TestService_Submit_AreasChain(t *testing.T) {
	t.Parallel()

	s, store, _ := makeService(t)
	ctx := context.Background()

	// Switzerland (41284) vs Monaco (2.02): "lower" must win and the next
	// round's first country must be the just-presented second one.
	seedGame(t, store, "sid", domain.GameState{
		Mode:     domain.ModeAreas,
		Region:   "europe",
		Country1: switzerland(),
		Country2: monaco(),
	})

	resp, err := s.Submit(ctx, game.SubmitRequest{
		SessionID: "sid",
		Username:  "u1",
		Mode:      domain.ModeAreas,
		Choice:    "lower",
	})
	require.NoError(t, err)

	require.True(t, resp.IsCorrect, "2.02 < 41284, lower is correct")
	require.Equal(t, 1, resp.Score)
	require.Equal(t, "LOWER", resp.CorrectAnswers)
	require.Equal(t, "MCO", resp.Country1.CCA3, "the second country must roll over to first")
	require.NotEqual(t, "MCO", resp.Country2.CCA3, "a fresh opponent must be drawn")
	require.True(t, resp.Country2.Area.IsPositive())
	require.True(t, strings.EqualFold(resp.Country2.Region, "europe"), "the chain stays region-scoped")
}

func TestService_Submit_AreaTieAcceptsBothAnswers(t *testing.T) {
	t.Parallel()

	for _, choice := range []string{"higher", "lower"} {
		choice := choice
		t.Run(choice, func(t *testing.T) {
			t.Parallel()

			s, store, _ := makeService(t)
			ctx := context.Background()

			tied := &domain.Country{CommonName: "Tied", CCA3: "TIE", Region: "Europe", Area: decimal.RequireFromString("1000")}
			alsoTied := &domain.Country{CommonName: "Also Tied", CCA3: "ALT", Region: "Europe", Area: decimal.RequireFromString("1000")}

			seedGame(t, store, "sid", domain.GameState{
				Mode:     domain.ModeAreas,
				Region:   "worldwide",
				Country1: tied,
				Country2: alsoTied,
			})

			resp, err := s.Submit(ctx, game.SubmitRequest{
				SessionID: "sid",
				Username:  "u1",
				Mode:      domain.ModeAreas,
				Choice:    choice,
			})
			require.NoError(t, err)
			require.True(t, resp.IsCorrect, "on a tie any answer wins")
			require.Equal(t, "HIGHER, LOWER", resp.CorrectAnswers)
		})
	}
}

func TestService_Submit_WithoutStart(t *testing.T) {
	t.Parallel()

	s, _, _ := makeService(t)

	_, err := s.Submit(context.Background(), game.SubmitRequest{
		SessionID: "sid",
		Username:  "u1",
		Mode:      domain.ModeCapitals,
		Choice:    "bern",
	})
	require.Error(t, err)
	require.True(t, errors.IsCode(err, errors.CodeInvalidArgument), "unexpected error: %v", err)
}

func TestService_Submit_HighscoreNeverDecreases(t *testing.T) {
	t.Parallel()

	s, store, hs := makeService(t)
	ctx := context.Background()
	hs.set("u1", domain.Highscores{Capitals: 2})

	submit := func(choice string) *game.SubmitResponse {
		seedGame(t, store, "sid", domain.GameState{
			Mode:    domain.ModeCapitals,
			Region:  "worldwide",
			Country: switzerland(),
			Score:   lastScore(t, store, "sid"),
		})

		resp, err := s.Submit(ctx, game.SubmitRequest{
			SessionID: "sid",
			Username:  "u1",
			Mode:      domain.ModeCapitals,
			Choice:    choice,
		})
		require.NoError(t, err)
		return resp
	}

	prev := 2
	for _, choice := range []string{"bern", "bern", "bern", "paris", "bern"} {
		resp := submit(choice)
		require.GreaterOrEqual(t, resp.Highscore, prev, "highscore must never decrease")
		prev = resp.Highscore
	}

	require.Equal(t, 3, hs.get("u1").Capitals, "best streak of 3 must be persisted")
}

func switzerland() *domain.Country {
	return &domain.Country{
		CommonName: "Switzerland",
		CCA3:       "CHE",
		Region:     "Europe",
		Capitals:   "Bern",
		Currencies: "CHF",
		Languages:  "German, French, Italian, Romansh",
		Area:       decimal.RequireFromString("41284"),
	}
}

func monaco() *domain.Country {
	return &domain.Country{
		CommonName: "Monaco",
		CCA3:       "MCO",
		Region:     "Europe",
		Capitals:   "Monaco",
		Currencies: "EUR",
		Languages:  "French",
		Area:       decimal.RequireFromString("2.02"),
	}
}

func seedGame(t *testing.T, store *session.Store, sessionID string, state domain.GameState) {
	t.Helper()
	require.NoError(t, store.SaveGame(context.Background(), sessionID, state))
}

func lastScore(t *testing.T, store *session.Store, sessionID string) int {
	t.Helper()
	state, ok, err := store.LoadGame(context.Background(), sessionID, domain.ModeCapitals)
	require.NoError(t, err)
	if !ok {
		return 0
	}
	return state.Score
}

func makeService(t *testing.T) (*game.Service, *session.Store, *fakeHighscores) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	store := session.NewStore(session.Config{
		Redis:  rc,
		Prefix: "test",
	})

	countries, err := dataset.LoadCountries()
	require.NoError(t, err)

	hs := newFakeHighscores()

	s := game.NewService(game.Config{
		Countries:  countries,
		Sessions:   store,
		Highscores: hs,
	})

	return s, store, hs
}

// fakeHighscores is an in-memory stand-in for the postgres-backed service.
type fakeHighscores struct {
	mu     sync.Mutex
	scores map[string]domain.Highscores
}

func newFakeHighscores() *fakeHighscores {
	return &fakeHighscores{scores: make(map[string]domain.Highscores)}
}

func (f *fakeHighscores) Get(_ context.Context, username string) (domain.Highscores, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scores[username], nil
}

func (f *fakeHighscores) Raise(_ context.Context, username string, mode domain.Mode, score int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	h := f.scores[username]
	switch mode {
	case domain.ModeAreas:
		if score <= h.Areas {
			return false, nil
		}
		h.Areas = score
	case domain.ModeCapitals:
		if score <= h.Capitals {
			return false, nil
		}
		h.Capitals = score
	case domain.ModeCurrencies:
		if score <= h.Currencies {
			return false, nil
		}
		h.Currencies = score
	case domain.ModeLanguages:
		if score <= h.Languages {
			return false, nil
		}
		h.Languages = score
	}
	f.scores[username] = h
	return true, nil
}

func (f *fakeHighscores) set(username string, h domain.Highscores) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scores[username] = h
}

func (f *fakeHighscores) get(username string) domain.Highscores {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scores[username]
}
