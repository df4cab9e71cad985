package domain

import "github.com/shopspring/decimal"

// Mode identifies one of the Worldle game modes.
type Mode string

const (
	ModeAreas      Mode = "areas"
	ModeCapitals   Mode = "capitals"
	ModeCurrencies Mode = "currencies"
	ModeLanguages  Mode = "languages"
)

// Modes lists every playable game mode.
var Modes = []Mode{ModeAreas, ModeCapitals, ModeCurrencies, ModeLanguages}

// Valid reports whether m names a known game mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeAreas, ModeCapitals, ModeCurrencies, ModeLanguages:
		return true
	}
	return false
}

// Country is the prompt value object stored in a game session. It is a
// serializable snapshot of a dataset record; correctness is always re-derived
// from this server-side copy, never from client-submitted data.
type Country struct {
	CommonName string          `json:"common_name"`
	CCA3       string          `json:"cca3"`
	Region     string          `json:"region"`
	Capitals   string          `json:"capitals"`
	Currencies string          `json:"currencies"`
	Languages  string          `json:"languages"`
	Area       decimal.Decimal `json:"area"`
}

// GameState is the per-player, per-mode session state: the currently
// presented prompt (a pair for the areas game) and the running streak score.
type GameState struct {
	Mode     Mode     `json:"mode"`
	Region   string   `json:"region"`
	Country  *Country `json:"country,omitempty"`
	Country1 *Country `json:"country1,omitempty"`
	Country2 *Country `json:"country2,omitempty"`
	Score    int      `json:"score"`
}

// User is a registered account.
type User struct {
	Username        string
	Email           string
	IsEmailVerified bool
	Highscores      Highscores
}

// Highscores holds the best-ever streak per game mode. Values never decrease.
type Highscores struct {
	Areas      int
	Capitals   int
	Currencies int
	Languages  int
}

// ForMode returns the highscore for the given mode.
func (h Highscores) ForMode(m Mode) int {
	switch m {
	case ModeAreas:
		return h.Areas
	case ModeCapitals:
		return h.Capitals
	case ModeCurrencies:
		return h.Currencies
	case ModeLanguages:
		return h.Languages
	}
	return 0
}

// Leaderboard is a ranking of players by one highscore field, sorted by
// highscore descending, ties broken by username ascending.
type Leaderboard struct {
	Mode    Mode
	Entries []LeaderboardEntry
}

type LeaderboardEntry struct {
	Username  string
	Highscore int
}

// WeekEntry is one week of exercise materials within a semester.
type WeekEntry struct {
	WeekNumber      int
	MaterialsNumber int
	MaterialsLink   string
	ExerciseLink    string
	SolutionsLink   string
	Remarks         string
}

// Semester groups the week entries of one exercise session, e.g. TM_HS23.
type Semester struct {
	ShortName string
	Name      string
	Weeks     []WeekEntry
}
