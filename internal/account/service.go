// Package account manages user registration, email verification and login.
package account

import (
	"context"
	stderrors "errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/Enzo1603/nethz/internal/domain"
	"github.com/Enzo1603/nethz/internal/errors"
	"github.com/Enzo1603/nethz/internal/event"
)

const (
	maxUsernameLen = 16
	minPasswordLen = 8
)

var usernameRE = regexp.MustCompile(`^[\w.@+-]+$`)

// Mailer delivers the verification email. Actual delivery is an external
// collaborator; the service only hands over the addressee and token.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, username, token string) error
}

type Config struct {
	EventBus *event.Bus
	DB       *pgxpool.Pool
	Mailer   Mailer
}

type Service struct {
	eb     *event.Bus
	db     *pgxpool.Pool
	mailer Mailer
}

func NewService(c Config) *Service {
	return &Service{
		eb:     c.EventBus,
		db:     c.DB,
		mailer: c.Mailer,
	}
}

type RegisterRequest struct {
	Username string
	Email    string
	Password string
}

// Register creates an unverified user and sends the verification email.
// The account cannot log in until the email is verified.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	if req.Username == "" || len(req.Username) > maxUsernameLen || !usernameRE.MatchString(req.Username) {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("username may contain only letters, numbers, and @/./+/-/_ characters (max %d)", maxUsernameLen))
	}
	if req.Email == "" {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("email must not be empty"))
	}
	if len(req.Password) < minPasswordLen {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("password must be at least %d characters", minPasswordLen))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("account: hash password: %w", err)
	}

	token := uuid.NewString()

	const stmt = `
INSERT INTO users (username, email, password_hash, is_email_verified, verification_token)
VALUES ($1, $2, $3, FALSE, $4);`

	_, err = s.db.Exec(ctx, stmt, req.Username, req.Email, hash, token)

	var pgErr *pgconn.PgError
	const codeUniqueViolation = "23505"
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return nil, errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("a user with that username or email already exists"),
			errors.WithCause(err))
	}
	if err != nil {
		return nil, fmt.Errorf("account: insert user: %w", err)
	}

	if err := s.mailer.SendVerificationEmail(ctx, req.Email, req.Username, token); err != nil {
		return nil, fmt.Errorf("account: send verification email: %w", err)
	}

	u := &domain.User{
		Username: req.Username,
		Email:    req.Email,
	}

	s.eb.Publish(ctx, domain.EventUserRegistered{User: *u})

	return u, nil
}

// Verify marks the user owning the token as email-verified and consumes the token.
func (s *Service) Verify(ctx context.Context, token string) error {
	const stmt = `
UPDATE users SET is_email_verified = TRUE, verification_token = NULL
WHERE verification_token = $1;`

	tag, err := s.db.Exec(ctx, stmt, token)
	if err != nil {
		return fmt.Errorf("account: verify: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return errors.New(errors.CodeNotFound,
			errors.WithMessagef("invalid or already used verification token"))
	}

	return nil
}

// Authenticate checks the credentials and returns the user. Unknown email,
// wrong password and unverified accounts all surface as unauthenticated.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	const stmt = `
SELECT username, email, is_email_verified, password_hash,
       areas_highscore, capitals_highscore, currencies_highscore, languages_highscore
FROM users
WHERE email = $1;`

	var (
		u    domain.User
		hash []byte
	)
	err := s.db.QueryRow(ctx, stmt, email).Scan(
		&u.Username, &u.Email, &u.IsEmailVerified, &hash,
		&u.Highscores.Areas, &u.Highscores.Capitals, &u.Highscores.Currencies, &u.Highscores.Languages,
	)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("invalid email or password"))
	}
	if err != nil {
		return nil, fmt.Errorf("account: authenticate: %w", err)
	}

	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return nil, errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("invalid email or password"))
	}

	if !u.IsEmailVerified {
		return nil, errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("you will not be able to log in until you have confirmed your email"))
	}

	return &u, nil
}
