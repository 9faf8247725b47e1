package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/contactkeeper/internal/common"
	"github.com/dmitrijs2005/contactkeeper/internal/cryptox"
	"github.com/dmitrijs2005/contactkeeper/internal/dbx"
	"github.com/dmitrijs2005/contactkeeper/internal/logging"
	"github.com/dmitrijs2005/contactkeeper/internal/server/auth"
	"github.com/dmitrijs2005/contactkeeper/internal/server/config"
	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
	"github.com/dmitrijs2005/contactkeeper/internal/server/repositories/repomanager"
)

// ResetNotifier delivers a freshly issued reset token to its owner. It must
// not block the caller on delivery.
type ResetNotifier interface {
	PasswordReset(ctx context.Context, u *models.User, token string)
}

// LoginResult is a minted session token plus the account it was issued for.
type LoginResult struct {
	Token string
	User  *models.User
}

// AuthService implements credential verification, session tokens and the
// password reset lifecycle.
type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      *cryptox.PasswordHasher
	notifier    ResetNotifier
	logger      logging.Logger

	jwtSecret           []byte
	accessTokenValidity time.Duration
	resetTokenValidity  time.Duration
	passwordMinLength   int

	// dummyHash is compared against when no account matches so that unknown
	// identifiers cost the same bcrypt work as wrong passwords.
	dummyHash string
	now       func() time.Time
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, notifier ResetNotifier, logger logging.Logger) *AuthService {
	hasher := cryptox.NewPasswordHasher(cfg.BcryptCost)
	// An empty dummy hash still fails Check, only without the bcrypt cost.
	dummy, _ := hasher.Hash("contactkeeper-no-such-account")

	minLen := cfg.PasswordMinLength
	if minLen < 8 {
		minLen = 8
	}

	return &AuthService{
		db:                  db,
		repomanager:         m,
		hasher:              hasher,
		notifier:            notifier,
		logger:              logger.With("module", "auth"),
		jwtSecret:           []byte(cfg.SecretKey),
		accessTokenValidity: cfg.AccessTokenValidityDuration,
		resetTokenValidity:  cfg.ResetTokenValidityDuration,
		passwordMinLength:   minLen,
		dummyHash:           dummy,
		now:                 time.Now,
	}
}

// Login authenticates identifier (username or email) with password. Unknown
// accounts, inactive accounts and wrong passwords all yield
// common.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, common.ErrInvalidCredentials
	}

	user, err := s.repomanager.Users(s.db).GetActiveByLogin(ctx, identifier)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_, _ = s.hasher.Check(s.dummyHash, password)
			return nil, common.ErrInvalidCredentials
		}
		return nil, storageError("find account", err)
	}

	ok, err := s.hasher.Check(user.PasswordHash, password)
	if err != nil {
		return nil, storageError("check password", err)
	}
	if !ok {
		return nil, common.ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.Identity(), s.jwtSecret, s.accessTokenValidity)
	if err != nil {
		return nil, storageError("sign token", err)
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID)
	return &LoginResult{Token: token, User: user}, nil
}

// VerifyToken returns the identity carried by a session token.
func (s *AuthService) VerifyToken(token string) (*models.Identity, error) {
	return auth.ParseToken(token, s.jwtSecret)
}

// ForgotPassword issues a reset token for the active account matching
// identifier and hands it to the notifier. It returns nil whether or not an
// account matched; only storage failures are reported.
func (s *AuthService) ForgotPassword(ctx context.Context, identifier string) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil
	}

	user, err := s.repomanager.Users(s.db).GetActiveByLogin(ctx, identifier)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Debug(ctx, "password reset requested for unknown account")
			return nil
		}
		return storageError("find account", err)
	}

	token, err := cryptox.NewResetToken()
	if err != nil {
		return storageError("generate reset token", err)
	}

	now := s.now()
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.ResetTokens(tx)
		if _, err := repo.InvalidateForUser(ctx, user.ID, now); err != nil {
			return err
		}
		return repo.Create(ctx, user.ID, cryptox.HashToken(token), now.Add(s.resetTokenValidity))
	})
	if err != nil {
		return storageError("store reset token", err)
	}

	s.logger.Info(ctx, "password reset token issued", "user_id", user.ID)
	s.notifier.PasswordReset(ctx, user, token)
	return nil
}

// ValidateResetToken reports whether token is unused and unexpired without
// consuming it.
func (s *AuthService) ValidateResetToken(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	_, err := s.repomanager.ResetTokens(s.db).FindValid(ctx, cryptox.HashToken(token), s.now())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, storageError("find reset token", err)
	}
	return true, nil
}

// ResetPassword redeems token and sets newPassword on its account. The
// token is consumed and the hash replaced in one transaction.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := checkPassword(newPassword, s.passwordMinLength); err != nil {
		return err
	}
	if token == "" {
		return common.ErrInvalidResetToken
	}

	tokenHash := cryptox.HashToken(token)
	now := s.now()

	rt, err := s.repomanager.ResetTokens(s.db).FindValid(ctx, tokenHash, now)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidResetToken
		}
		return storageError("find reset token", err)
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrAccountInactive
		}
		return storageError("find account", err)
	}
	if !user.IsActive {
		return common.ErrAccountInactive
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return storageError("hash password", err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		userID, err := s.repomanager.ResetTokens(tx).Consume(ctx, tokenHash, now)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidResetToken
			}
			return err
		}
		if err := s.repomanager.Users(tx).UpdatePassword(ctx, userID, hash); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrAccountInactive
			}
			return err
		}
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, common.ErrInvalidResetToken), errors.Is(err, common.ErrAccountInactive):
		return err
	default:
		return storageError("reset password", err)
	}

	s.logger.Info(ctx, "password reset completed", "user_id", user.ID)
	return nil
}
