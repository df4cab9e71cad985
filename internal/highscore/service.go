// Package highscore persists the per-user, per-mode best streak scores.
package highscore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Enzo1603/nethz/internal/domain"
	"github.com/Enzo1603/nethz/internal/errors"
	"github.com/Enzo1603/nethz/internal/event"
)

// Column returns the users-table column holding the highscore for mode.
func Column(mode domain.Mode) (string, bool) {
	switch mode {
	case domain.ModeAreas:
		return "areas_highscore", true
	case domain.ModeCapitals:
		return "capitals_highscore", true
	case domain.ModeCurrencies:
		return "currencies_highscore", true
	case domain.ModeLanguages:
		return "languages_highscore", true
	}
	return "", false
}

type Config struct {
	EventBus *event.Bus
	DB       *pgxpool.Pool
}

type Service struct {
	eb *event.Bus
	db *pgxpool.Pool
}

func NewService(c Config) *Service {
	return &Service{
		eb: c.EventBus,
		db: c.DB,
	}
}

// Get returns all stored highscores for a user.
func (s *Service) Get(ctx context.Context, username string) (domain.Highscores, error) {
	const stmt = `
SELECT areas_highscore, capitals_highscore, currencies_highscore, languages_highscore
FROM users
WHERE username = $1;`

	var h domain.Highscores
	err := s.db.QueryRow(ctx, stmt, username).Scan(&h.Areas, &h.Capitals, &h.Currencies, &h.Languages)
	if err != nil {
		return domain.Highscores{}, fmt.Errorf("highscore: get for %q: %w", username, err)
	}

	return h, nil
}

// Raise updates the stored highscore for one mode if score beats it, with at
// most one write. It reports whether the record was actually raised and
// publishes an event on a raise. Stored highscores never decrease.
func (s *Service) Raise(ctx context.Context, username string, mode domain.Mode, score int) (bool, error) {
	col, ok := Column(mode)
	if !ok {
		return false, errors.New(errors.CodeNotFound,
			errors.WithMessagef("unknown game mode %q", mode))
	}

	// The column name comes from the fixed mode mapping above, never from input.
	stmt := fmt.Sprintf(`UPDATE users SET %s = $2 WHERE username = $1 AND %s < $2;`, col, col)

	tag, err := s.db.Exec(ctx, stmt, username, score)
	if err != nil {
		return false, fmt.Errorf("highscore: raise %s for %q: %w", mode, username, err)
	}

	if tag.RowsAffected() == 0 {
		return false, nil
	}

	s.eb.Publish(ctx, domain.EventHighscoreUpdated{
		Username:  username,
		Mode:      mode,
		Highscore: score,
	})

	return true, nil
}
