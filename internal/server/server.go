package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/Enzo1603/nethz/internal/account"
	"github.com/Enzo1603/nethz/internal/api"
	"github.com/Enzo1603/nethz/internal/dataset"
	"github.com/Enzo1603/nethz/internal/event"
	"github.com/Enzo1603/nethz/internal/game"
	"github.com/Enzo1603/nethz/internal/highscore"
	"github.com/Enzo1603/nethz/internal/leaderboard"
	"github.com/Enzo1603/nethz/internal/materials"
	"github.com/Enzo1603/nethz/internal/session"
	"github.com/Enzo1603/nethz/internal/telemetry"
)

type Config struct {
	HTTP struct {
		Port    int32
		BaseURL string
	}

	Session struct {
		TTL time.Duration
	}

	Redis struct {
		Main struct {
			Addrs  []string
			Pass   string
			Prefix string
		}

		Pubsub struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Postgres struct {
		Addr string
		User string
		Pass string
		Name string
	}
}

type Server struct {
	c Config

	eb *event.Bus

	data struct {
		countries  *dataset.Countries
		currencies *dataset.CurrencyCodes
	}

	infra struct {
		redis struct {
			main   redis.UniversalClient
			pubsub redis.UniversalClient
		}

		postgres *pgxpool.Pool
	}

	service struct {
		sessions    *session.Store
		highscore   *highscore.Service
		leaderboard *leaderboard.Service
		game        *game.Service
		account     *account.Service
		materials   *materials.Service
	}

	http *http.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initData(); err != nil {
		return nil, fmt.Errorf("server: init data: %w", err)
	}

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()

	if err := s.warmUp(); err != nil {
		return nil, fmt.Errorf("server: warm up: %w", err)
	}

	s.initAPI()
	return s, nil
}

// initData parses the embedded country and currency tables. Parsing happens
// exactly once for the process lifetime; every service shares the result.
func (s *Server) initData() (err error) {
	s.data.countries, err = dataset.LoadCountries()
	if err != nil {
		return err
	}

	s.data.currencies, err = dataset.LoadCurrencyCodes()
	return err
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(addrs []string, pass string) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    addrs,
			Password: pass,
		})

		if err := telemetry.MonitorRedis(r); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.main, err = connect(s.c.Redis.Main.Addrs, s.c.Redis.Main.Pass)
	if err != nil {
		return fmt.Errorf("main: %w", err)
	}

	s.infra.redis.pubsub, err = connect(s.c.Redis.Pubsub.Addrs, s.c.Redis.Pubsub.Pass)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

func (s *Server) initPostgres() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s",
		s.c.Postgres.User, s.c.Postgres.Pass, s.c.Postgres.Addr, s.c.Postgres.Name))
	if err != nil {
		return err
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return err
	}

	if err := db.Ping(ctx); err != nil {
		return err
	}

	s.infra.postgres = db
	return nil
}

func (s *Server) initService() {
	s.service.sessions = session.NewStore(session.Config{
		Redis:  s.infra.redis.main,
		Prefix: s.c.Redis.Main.Prefix,
		TTL:    s.c.Session.TTL,
	})

	s.service.highscore = highscore.NewService(highscore.Config{
		EventBus: s.eb,
		DB:       s.infra.postgres,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		DB:       s.infra.postgres,
		Redis:    s.infra.redis.main,
		Prefix:   s.c.Redis.Main.Prefix,
	})

	s.service.game = game.NewService(game.Config{
		Countries:  s.data.countries,
		Sessions:   s.service.sessions,
		Highscores: s.service.highscore,
	})

	s.service.account = account.NewService(account.Config{
		EventBus: s.eb,
		DB:       s.infra.postgres,
		Mailer:   account.NewLogMailer(s.c.HTTP.BaseURL),
	})

	s.service.materials = materials.NewService(materials.Config{
		DB: s.infra.postgres,
	})
}

func (s *Server) warmUp() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.service.leaderboard.WarmUp(ctx)
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery(), telemetry.HTTPMiddleware())

	api.New(api.Config{
		Engine:        e,
		EventBus:      s.eb,
		Sessions:      s.service.sessions,
		Game:          s.service.game,
		Leaderboard:   s.service.leaderboard,
		Accounts:      s.service.account,
		Materials:     s.service.materials,
		CurrencyCodes: s.data.currencies,
		Redis:         s.infra.redis.pubsub,
		PubsubPrefix:  s.c.Redis.Pubsub.Prefix,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	s.infra.postgres.Close()
	if err := s.infra.redis.main.Close(); err != nil {
		slog.ErrorContext(ctx, "server: close redis failed", "error", err)
	}
	if err := s.infra.redis.pubsub.Close(); err != nil {
		slog.ErrorContext(ctx, "server: close pubsub redis failed", "error", err)
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
