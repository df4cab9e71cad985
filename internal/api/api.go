// Package api exposes the HTTP surface of the site: account management, the
// Worldle games, leaderboards and the exercise-material listings.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/Enzo1603/nethz/internal/account"
	"github.com/Enzo1603/nethz/internal/dataset"
	"github.com/Enzo1603/nethz/internal/domain"
	"github.com/Enzo1603/nethz/internal/errors"
	"github.com/Enzo1603/nethz/internal/event"
	"github.com/Enzo1603/nethz/internal/game"
	"github.com/Enzo1603/nethz/internal/leaderboard"
	"github.com/Enzo1603/nethz/internal/materials"
	"github.com/Enzo1603/nethz/internal/session"
)

const (
	// SessionCookie carries the login session ID.
	SessionCookie = "nethz_session"

	defaultLeaderboardSize = 10

	ctxUsername  = "username"
	ctxSessionID = "session_id"
)

type Config struct {
	Engine        *gin.Engine
	EventBus      *event.Bus
	Sessions      *session.Store
	Game          *game.Service
	Leaderboard   *leaderboard.Service
	Accounts      *account.Service
	Materials     *materials.Service
	CurrencyCodes *dataset.CurrencyCodes
	Redis         Redis
	PubsubPrefix  string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	sessions      *session.Store
	game          *game.Service
	leaderboard   *leaderboard.Service
	accounts      *account.Service
	materials     *materials.Service
	currencyCodes *dataset.CurrencyCodes

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		sessions:      c.Sessions,
		game:          c.Game,
		leaderboard:   c.Leaderboard,
		accounts:      c.Accounts,
		materials:     c.Materials,
		currencyCodes: c.CurrencyCodes,
		redis:         c.Redis,
		prefix:        c.PubsubPrefix,
	}

	a.registerRoutes(c.Engine)

	c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
	})

	return a
}

func (a *API) registerRoutes(r *gin.Engine) {
	r.POST("/accounts/signup", a.signup)
	r.GET("/accounts/verify/:token", a.verifyEmail)
	r.POST("/accounts/login", a.login)

	r.GET("/worldle/code-to-currency-name/:code", a.currencyName)
	r.GET("/worldle/leaderboard/:field", a.topPlayers)

	r.GET("/materials/:semester", a.semester)

	authed := r.Group("", a.requireAuth)
	authed.POST("/accounts/logout", a.logout)
	authed.GET("/accounts/me", a.me)
	authed.GET("/worldle/play/:mode", a.startGame)
	authed.POST("/worldle/play/:mode", a.submitAnswer)
	authed.GET("/worldle/play/:mode/:region", a.startGame)
	authed.POST("/worldle/play/:mode/:region", a.submitAnswer)
}

// requireAuth resolves the session cookie to a username. Anything game- or
// account-scoped is unreachable without a live login session.
func (a *API) requireAuth(c *gin.Context) {
	id, err := c.Cookie(SessionCookie)
	if err != nil {
		respondError(c, errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("login required")))
		return
	}

	username, err := a.sessions.Resolve(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Set(ctxUsername, username)
	c.Set(ctxSessionID, id)
	c.Next()
}

type signupRequest struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

func (a *API) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	u, err := a.accounts.Register(c.Request.Context(), account.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"username": u.Username,
		"email":    u.Email,
		"message":  "account creation successful, a confirmation email has been sent to your email address",
	})
}

func (a *API) verifyEmail(c *gin.Context) {
	if err := a.accounts.Verify(c.Request.Context(), c.Param("token")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "email verified, you can log in now"})
}

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

func (a *API) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	u, err := a.accounts.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	id, err := a.sessions.Create(c.Request.Context(), u.Username)
	if err != nil {
		respondError(c, err)
		return
	}

	// The cookie expires together with the server-side session.
	c.SetCookie(SessionCookie, id, int(a.sessions.TTL().Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"username": u.Username})
}

func (a *API) logout(c *gin.Context) {
	if err := a.sessions.Delete(c.Request.Context(), c.GetString(ctxSessionID)); err != nil {
		respondError(c, err)
		return
	}

	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (a *API) me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"username": c.GetString(ctxUsername)})
}

func (a *API) startGame(c *gin.Context) {
	region := c.Param("region")
	if region == "" {
		region = dataset.DefaultRegion
	}

	resp, err := a.game.Start(c.Request.Context(), game.StartRequest{
		SessionID: c.GetString(ctxSessionID),
		Username:  c.GetString(ctxUsername),
		Mode:      domain.Mode(c.Param("mode")),
		Region:    region,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	payload := gin.H{
		"score":     resp.Score,
		"highscore": resp.Highscore,
	}
	addPrompt(payload, resp.Country, resp.Country1, resp.Country2, resp.Choices)

	c.JSON(http.StatusOK, payload)
}

type submitRequest struct {
	Choice string `json:"choice" form:"choice"`
}

func (a *API) submitAnswer(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	resp, err := a.game.Submit(c.Request.Context(), game.SubmitRequest{
		SessionID: c.GetString(ctxSessionID),
		Username:  c.GetString(ctxUsername),
		Mode:      domain.Mode(c.Param("mode")),
		Choice:    req.Choice,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	payload := gin.H{
		"score":           resp.Score,
		"highscore":       resp.Highscore,
		"is_correct":      resp.IsCorrect,
		"correct_answers": resp.CorrectAnswers,
	}
	addPrompt(payload, resp.Country, resp.Country1, resp.Country2, resp.Choices)

	c.JSON(http.StatusOK, payload)
}

func addPrompt(payload gin.H, country, country1, country2 *domain.Country, choices map[string]string) {
	if country != nil {
		payload["country"] = country
		payload["choices"] = choices
		return
	}

	payload["country1"] = country1
	payload["country2"] = country2
}

func (a *API) topPlayers(c *gin.Context) {
	n := defaultLeaderboardSize
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(c, errors.New(errors.CodeInvalidArgument,
				errors.WithMessagef("invalid limit %q", raw)))
			return
		}
		n = parsed
	}

	l, err := a.leaderboard.Top(c.Request.Context(), leaderboard.TopRequest{
		Field: c.Param("field"),
		N:     n,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	entries := make([]gin.H, 0, len(l.Entries))
	for _, e := range l.Entries {
		entries = append(entries, gin.H{
			"username":  e.Username,
			"highscore": e.Highscore,
		})
	}

	c.JSON(http.StatusOK, entries)
}

func (a *API) currencyName(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"currency_name": a.currencyCodes.Name(c.Param("code")),
	})
}

func (a *API) semester(c *gin.Context) {
	sem, err := a.materials.Semester(c.Request.Context(), c.Param("semester"))
	if err != nil {
		respondError(c, err)
		return
	}

	weeks := make([]gin.H, 0, len(sem.Weeks))
	for _, w := range sem.Weeks {
		weeks = append(weeks, gin.H{
			"week_number":             w.WeekNumber,
			"materials_number":        w.MaterialsNumber,
			"exercise_materials_link": w.MaterialsLink,
			"exercise_link":           w.ExerciseLink,
			"solutions_link":          w.SolutionsLink,
			"remarks":                 w.Remarks,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"short_name": sem.ShortName,
		"name":       sem.Name,
		"weeks":      weeks,
	})
}

func respondError(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal || e.Code == errors.CodeExhausted {
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"route", c.FullPath(),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), gin.H{"error": e.Message})
}
