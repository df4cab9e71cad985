// Package game implements the Worldle quiz engine: prompt sampling, distractor
// generation and the per-session streak state machine.
package game

import (
	"context"
	"strings"

	"github.com/Enzo1603/nethz/internal/dataset"
	"github.com/Enzo1603/nethz/internal/domain"
	"github.com/Enzo1603/nethz/internal/errors"
	"github.com/Enzo1603/nethz/internal/telemetry"
)

const (
	defaultChoiceCount = 4

	answerHigher = "higher"
	answerLower  = "lower"
)

// Highscores reads and conditionally raises persisted highscores.
type Highscores interface {
	Get(ctx context.Context, username string) (domain.Highscores, error)
	Raise(ctx context.Context, username string, mode domain.Mode, score int) (bool, error)
}

// Sessions stores per-session game state.
type Sessions interface {
	SaveGame(ctx context.Context, sessionID string, state domain.GameState) error
	LoadGame(ctx context.Context, sessionID string, mode domain.Mode) (domain.GameState, bool, error)
}

type Config struct {
	Countries   *dataset.Countries
	Sessions    Sessions
	Highscores  Highscores
	ChoiceCount int
}

type Service struct {
	countries   *dataset.Countries
	sessions    Sessions
	highscores  Highscores
	choiceCount int
}

func NewService(c Config) *Service {
	count := c.ChoiceCount
	if count <= 0 {
		count = defaultChoiceCount
	}

	return &Service{
		countries:   c.Countries,
		sessions:    c.Sessions,
		highscores:  c.Highscores,
		choiceCount: count,
	}
}

func modeField(mode domain.Mode) dataset.Field {
	switch mode {
	case domain.ModeCapitals:
		return dataset.FieldCapital
	case domain.ModeCurrencies:
		return dataset.FieldCurrencies
	case domain.ModeLanguages:
		return dataset.FieldLanguages
	}
	return dataset.FieldArea
}

type StartRequest struct {
	SessionID string
	Username  string
	Mode      domain.Mode
	Region    string
}

type StartResponse struct {
	Country   *domain.Country
	Country1  *domain.Country
	Country2  *domain.Country
	Choices   map[string]string
	Score     int
	Highscore int
}

// Start begins or continues a game: it draws a new prompt, stores it in the
// session and returns it together with the current streak and highscore. The
// streak is preserved when the session already holds a game for this mode.
func (s *Service) Start(ctx context.Context, req StartRequest) (*StartResponse, error) {
	if !req.Mode.Valid() {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("unknown game mode %q", req.Mode))
	}
	if !dataset.ValidRegion(req.Region) {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("unknown region %q", req.Region))
	}

	state := domain.GameState{
		Mode:   req.Mode,
		Region: strings.ToLower(strings.TrimSpace(req.Region)),
	}
	if prev, ok, err := s.sessions.LoadGame(ctx, req.SessionID, req.Mode); err != nil {
		return nil, err
	} else if ok {
		state.Score = prev.Score
	}

	resp := &StartResponse{Score: state.Score}
	if err := s.drawPrompt(&state, resp); err != nil {
		return nil, err
	}

	if err := s.sessions.SaveGame(ctx, req.SessionID, state); err != nil {
		return nil, err
	}

	hs, err := s.highscores.Get(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	resp.Highscore = hs.ForMode(req.Mode)

	return resp, nil
}

type SubmitRequest struct {
	SessionID string
	Username  string
	Mode      domain.Mode
	Choice    string
}

type SubmitResponse struct {
	Country        *domain.Country
	Country1       *domain.Country
	Country2       *domain.Country
	Choices        map[string]string
	Score          int
	Highscore      int
	IsCorrect      bool
	CorrectAnswers string
}

// Submit grades a submitted answer against the prompt stored in the session.
// The correct answer is always re-derived from the stored record, never from
// client data. A correct answer extends the streak by one, an incorrect one
// resets it to zero; the persisted highscore is raised when beaten, with at
// most one write. A new prompt is drawn and stored for the next round.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	if !req.Mode.Valid() {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("unknown game mode %q", req.Mode))
	}

	state, ok, err := s.sessions.LoadGame(ctx, req.SessionID, req.Mode)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Submitting without a started game is a client error, not a fresh game.
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("no active %s game in this session", req.Mode))
	}

	var (
		isCorrect      bool
		correctAnswers []string
	)
	if req.Mode == domain.ModeAreas {
		isCorrect, correctAnswers = gradeAreas(state, req.Choice)
	} else {
		isCorrect, correctAnswers = gradeTokens(state, req.Mode, req.Choice)
	}

	if isCorrect {
		state.Score++
		telemetry.RoundsPlayed.WithLabelValues(string(req.Mode), "correct").Inc()
	} else {
		state.Score = 0
		telemetry.RoundsPlayed.WithLabelValues(string(req.Mode), "incorrect").Inc()
	}

	hs, err := s.highscores.Get(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	highscore := hs.ForMode(req.Mode)
	if state.Score > highscore {
		if _, err := s.highscores.Raise(ctx, req.Username, req.Mode, state.Score); err != nil {
			return nil, err
		}
		highscore = state.Score
	}

	resp := &SubmitResponse{
		Score:          state.Score,
		Highscore:      highscore,
		IsCorrect:      isCorrect,
		CorrectAnswers: strings.ToUpper(strings.Join(correctAnswers, ", ")),
	}

	if err := s.advancePrompt(&state, resp); err != nil {
		return nil, err
	}

	if err := s.sessions.SaveGame(ctx, req.SessionID, state); err != nil {
		return nil, err
	}

	return resp, nil
}

// gradeTokens checks a single-answer submission against the flattened
// correct-answer set of the stored prompt.
func gradeTokens(state domain.GameState, mode domain.Mode, choice string) (bool, []string) {
	tokens := Flatten(*state.Country, modeField(mode))
	choice = Normalize(choice)

	for _, t := range tokens {
		if t == choice {
			return true, tokens
		}
	}

	return false, tokens
}

// gradeAreas compares the stored pair numerically. On exactly equal areas both
// "higher" and "lower" win.
func gradeAreas(state domain.GameState, choice string) (bool, []string) {
	cmp := state.Country2.Area.Cmp(state.Country1.Area)
	choice = Normalize(choice)

	switch {
	case cmp > 0:
		return choice == answerHigher, []string{answerHigher}
	case cmp < 0:
		return choice == answerLower, []string{answerLower}
	default:
		return choice == answerHigher || choice == answerLower, []string{answerHigher, answerLower}
	}
}

// drawPrompt fills state and resp with a fresh prompt for the state's mode.
func (s *Service) drawPrompt(state *domain.GameState, resp *StartResponse) error {
	if state.Mode == domain.ModeAreas {
		pair, err := s.countries.SampleN(state.Region, 2, dataset.FieldArea)
		if err != nil {
			return err
		}
		state.Country1, state.Country2 = &pair[0], &pair[1]
		state.Country = nil
		resp.Country1, resp.Country2 = state.Country1, state.Country2
		return nil
	}

	field := modeField(state.Mode)
	c, err := s.countries.SampleFiltered(state.Region, field)
	if err != nil {
		return err
	}
	state.Country = &c
	state.Country1, state.Country2 = nil, nil
	resp.Country = state.Country

	choices, err := BuildChoices(s.countries, primaryAnswer(c, field), field, s.choiceCount)
	if err != nil {
		return err
	}
	resp.Choices = choices
	return nil
}

// advancePrompt draws the next round's prompt. The areas game chains: the
// previous second country becomes the new first one.
func (s *Service) advancePrompt(state *domain.GameState, resp *SubmitResponse) error {
	if state.Mode == domain.ModeAreas {
		next, err := s.sampleAreaOpponent(state.Region, *state.Country2)
		if err != nil {
			return err
		}
		state.Country1 = state.Country2
		state.Country2 = &next
		resp.Country1, resp.Country2 = state.Country1, state.Country2
		return nil
	}

	start := &StartResponse{}
	if err := s.drawPrompt(state, start); err != nil {
		return err
	}
	resp.Country = start.Country
	resp.Choices = start.Choices
	return nil
}

// sampleAreaOpponent draws one area-bearing record distinct from current,
// retrying rejected draws up to the usual bound.
func (s *Service) sampleAreaOpponent(region string, current domain.Country) (domain.Country, error) {
	for retry := 0; retry < maxDrawRetries; retry++ {
		sample, err := s.countries.SampleN(region, 1, dataset.FieldArea)
		if err != nil {
			return domain.Country{}, err
		}
		if sample[0].CCA3 != current.CCA3 {
			return sample[0], nil
		}
	}

	return domain.Country{}, errors.New(errors.CodeExhausted,
		errors.WithMessagef("could not draw an opponent distinct from %s in region %q", current.CCA3, region))
}

// primaryAnswer is the display token the choice set is built around: the first
// entry of the record's (possibly multi-valued) field.
func primaryAnswer(c domain.Country, f dataset.Field) string {
	value := dataset.FieldValue(c, f)
	if i := strings.Index(value, ","); i >= 0 {
		value = value[:i]
	}
	return strings.TrimSpace(value)
}
