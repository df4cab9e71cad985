// Package materials serves the exercise-material listings per semester.
package materials

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Enzo1603/nethz/internal/domain"
	"github.com/Enzo1603/nethz/internal/errors"
)

type Config struct {
	DB *pgxpool.Pool
}

type Service struct {
	db *pgxpool.Pool
}

func NewService(c Config) *Service {
	return &Service{db: c.DB}
}

// Semester returns the week entries of one exercise session, ordered by week.
// An unknown semester key is a not-found.
func (s *Service) Semester(ctx context.Context, shortName string) (*domain.Semester, error) {
	const semesterStmt = `SELECT name FROM exercise_sessions WHERE short_name = $1;`

	sem := domain.Semester{ShortName: shortName}
	err := s.db.QueryRow(ctx, semesterStmt, shortName).Scan(&sem.Name)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("unknown semester %q", shortName))
	}
	if err != nil {
		return nil, fmt.Errorf("materials: get semester %q: %w", shortName, err)
	}

	const weeksStmt = `
SELECT week_number, materials_number, exercise_materials_link, exercise_link, solutions_link, remarks
FROM week_entries
WHERE semester = $1
ORDER BY week_number;`

	rows, err := s.db.Query(ctx, weeksStmt, shortName)
	if err != nil {
		return nil, fmt.Errorf("materials: list weeks for %q: %w", shortName, err)
	}

	sem.Weeks, err = pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.WeekEntry, error) {
		var w domain.WeekEntry
		if err := r.Scan(&w.WeekNumber, &w.MaterialsNumber, &w.MaterialsLink, &w.ExerciseLink, &w.SolutionsLink, &w.Remarks); err != nil {
			return domain.WeekEntry{}, err
		}
		return w, nil
	})
	if err != nil {
		return nil, fmt.Errorf("materials: collect weeks for %q: %w", shortName, err)
	}

	return &sem, nil
}
