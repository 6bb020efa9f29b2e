package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/makkenzo/license-key-service/internal/config"
	"github.com/makkenzo/license-key-service/internal/domain/activity"
	"github.com/makkenzo/license-key-service/internal/domain/session"
	"github.com/makkenzo/license-key-service/internal/domain/user"
	"github.com/makkenzo/license-key-service/internal/ierr"
	"go.uber.org/zap"
)

const tokenIssuer = "license-key-service"

type SessionClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type AuthService struct {
	users    user.Repository
	sessions session.Store
	activity *ActivityService
	cfg      config.SessionConfig
	logger   *zap.Logger
	now      func() time.Time
}

func NewAuthService(users user.Repository, sessions session.Store, activity *ActivityService, cfg config.SessionConfig, logger *zap.Logger) (*AuthService, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("session secret is required")
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	if cfg.MaxLifetime <= 0 {
		cfg.MaxLifetime = 12 * time.Hour
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		activity: activity,
		cfg:      cfg,
		logger:   logger.Named("AuthService"),
		now:      time.Now,
	}, nil
}

// Login checks the credentials, opens a session and returns the signed
// token that identifies it.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *session.Session, error) {
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ierr.ErrUserNotFound) {
			s.logger.Info("Login attempt for unknown user", zap.String("username", username))
			return "", nil, ierr.ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !u.CheckPassword(password) {
		s.logger.Info("Login attempt with wrong password", zap.String("username", username))
		return "", nil, ierr.ErrInvalidCredentials
	}

	now := s.now().UTC()
	sess := &session.Session{
		ID:         uuid.NewString(),
		Username:   u.Username,
		CreatedAt:  now,
		LastSeenAt: now,
	}
	if err := s.sessions.Save(ctx, sess, s.cfg.IdleTimeout); err != nil {
		return "", nil, fmt.Errorf("failed to create session: %w", err)
	}

	token, err := s.sign(sess, now)
	if err != nil {
		_ = s.sessions.Delete(ctx, sess.ID)
		return "", nil, err
	}

	s.activity.Append(ctx, activity.ActionLogin, fmt.Sprintf("%s logged in", u.Username), "")
	s.logger.Info("Admin logged in", zap.String("username", u.Username), zap.String("session_id", sess.ID))
	return token, sess, nil
}

func (s *AuthService) sign(sess *session.Session, now time.Time) (string, error) {
	claims := SessionClaims{
		Username: sess.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Subject:   sess.Username,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.MaxLifetime)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

func (s *AuthService) parse(rawToken string) (*SessionClaims, error) {
	var claims SessionClaims
	_, err := jwt.ParseWithClaims(rawToken, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ierr.ErrInvalidToken, err)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing session id", ierr.ErrInvalidToken)
	}
	return &claims, nil
}

// Authenticate resolves a token to its live session and slides the idle
// timeout forward.
func (s *AuthService) Authenticate(ctx context.Context, rawToken string) (*session.Session, error) {
	claims, err := s.parse(rawToken)
	if err != nil {
		s.logger.Debug("Rejected session token", zap.Error(err))
		return nil, err
	}

	sess, err := s.sessions.Get(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, ierr.ErrSessionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if err := s.sessions.Touch(ctx, sess.ID, s.cfg.IdleTimeout); err != nil {
		s.logger.Warn("Failed to extend session", zap.String("session_id", sess.ID), zap.Error(err))
	}
	return sess, nil
}

// Logout ends the session behind the token. Unknown or malformed tokens are
// not an error.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	claims, err := s.parse(rawToken)
	if err != nil {
		return nil
	}

	sess, err := s.sessions.Get(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, ierr.ErrSessionNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load session: %w", err)
	}
	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	s.activity.Append(ctx, activity.ActionLogout, fmt.Sprintf("%s logged out", sess.Username), "")
	s.logger.Info("Admin logged out", zap.String("username", sess.Username))
	return nil
}

func (s *AuthService) IdleTimeout() time.Duration { return s.cfg.IdleTimeout }
