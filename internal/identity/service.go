package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"parley/client/internal/auth"
	"parley/client/internal/logger"
	"parley/client/internal/session"
	"parley/client/internal/store"
	"parley/client/internal/util"
)

// UserStore defines the storage interface for auth
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) error
}

// SessionStore persists signed-in sessions keyed by access-token hash.
// *session.RedisStore implements it; nil disables persistence.
type SessionStore interface {
	Save(ctx context.Context, tokenHash string, rec session.Record, expiresAt time.Time) error
	Lookup(ctx context.Context, tokenHash string) (session.Record, error)
	Revoke(ctx context.Context, tokenHash string) error
}

// Service implements Provider against a user store, with the current
// session held in memory and broadcast to watchers.
type Service struct {
	users     UserStore
	sessions  SessionStore
	secret    []byte
	accessTTL time.Duration

	mu       sync.Mutex
	current  *Session
	watchers []func(*Session)
}

func NewService(users UserStore, sessions SessionStore, tokenSecret string, accessTTL time.Duration) *Service {
	return &Service{
		users:     users,
		sessions:  sessions,
		secret:    []byte(tokenSecret),
		accessTTL: accessTTL,
	}
}

// Register creates a new account and signs the user in.
func (s *Service) Register(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, authError("email and password are required", nil)
	}
	if len(password) < 8 {
		return nil, authError("password must be at least 8 characters", nil)
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, authError("email already registered", nil)
	} else if !errors.Is(err, store.ErrUserNotFound) {
		return nil, authError("account lookup failed", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, authError("hash password", err)
	}

	user := store.User{
		ID:           util.NewID("u"),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, authError("create account failed", err)
	}

	return s.signIn(ctx, user)
}

// Login authenticates an existing account.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, authError("email and password are required", nil)
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, authError("invalid email or password", nil)
		}
		return nil, authError("account lookup failed", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, authError("invalid email or password", nil)
	}

	return s.signIn(ctx, user)
}

// Resume restores a session from a previously issued access token.
func (s *Service) Resume(ctx context.Context, token string) (*Session, error) {
	claims, err := auth.ParseToken(s.secret, token)
	if err != nil {
		return nil, authError("session expired, sign in again", err)
	}

	sess := &Session{UserID: claims.Sub, Email: claims.Email, Token: token}
	if s.sessions != nil {
		rec, err := s.sessions.Lookup(ctx, auth.HashToken(token))
		if err != nil {
			return nil, authError("session expired, sign in again", err)
		}
		sess.UserID = rec.UserID
		sess.Email = rec.Email
	}

	s.setCurrent(sess)
	return sess, nil
}

// Logout clears the current session. The in-memory session is always
// cleared and watchers notified, even if revoking the persisted record fails.
func (s *Service) Logout(ctx context.Context) error {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()

	s.setCurrent(nil)

	if current != nil && s.sessions != nil {
		if err := s.sessions.Revoke(ctx, auth.HashToken(current.Token)); err != nil {
			logger.Log.Warn("revoke persisted session", zap.Error(err))
		}
	}
	return nil
}

// OnSessionChange registers a watcher and fires it immediately with the
// current state.
func (s *Service) OnSessionChange(fn func(*Session)) {
	s.mu.Lock()
	s.watchers = append(s.watchers, fn)
	current := s.current
	s.mu.Unlock()

	fn(current)
}

func (s *Service) signIn(ctx context.Context, user store.User) (*Session, error) {
	expiresAt := time.Now().Add(s.accessTTL)
	token, err := auth.IssueToken(s.secret, auth.Claims{
		Sub:   user.ID,
		Email: user.Email,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return nil, authError("issue access token", err)
	}

	sess := &Session{UserID: user.ID, Email: user.Email, Token: token}

	if s.sessions != nil {
		rec := session.Record{UserID: user.ID, Email: user.Email}
		if err := s.sessions.Save(ctx, auth.HashToken(token), rec, expiresAt); err != nil {
			// Sign-in still succeeds; only Resume is affected.
			logger.Log.Warn("persist session", zap.Error(err))
		}
	}

	s.setCurrent(sess)
	return sess, nil
}

func (s *Service) setCurrent(sess *Session) {
	s.mu.Lock()
	s.current = sess
	watchers := make([]func(*Session), len(s.watchers))
	copy(watchers, s.watchers)
	s.mu.Unlock()

	for _, fn := range watchers {
		fn(sess)
	}
}
