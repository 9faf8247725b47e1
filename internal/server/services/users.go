package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/contactkeeper/internal/common"
	"github.com/dmitrijs2005/contactkeeper/internal/cryptox"
	"github.com/dmitrijs2005/contactkeeper/internal/logging"
	"github.com/dmitrijs2005/contactkeeper/internal/server/auth"
	"github.com/dmitrijs2005/contactkeeper/internal/server/config"
	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
	"github.com/dmitrijs2005/contactkeeper/internal/server/repositories/repomanager"
)

type CreateUserInput struct {
	Username string
	Email    string
	Password string
	Role     models.Role
	IsActive *bool
}

type UpdateUserInput struct {
	Username *string
	Email    *string
	Password *string
	Role     *models.Role
	IsActive *bool
}

// UserService manages staff accounts.
type UserService struct {
	db                *sql.DB
	repomanager       repomanager.RepositoryManager
	hasher            *cryptox.PasswordHasher
	paging            paging
	passwordMinLength int
	logger            logging.Logger
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *UserService {
	minLen := cfg.PasswordMinLength
	if minLen < 8 {
		minLen = 8
	}
	return &UserService{
		db:                db,
		repomanager:       m,
		hasher:            cryptox.NewPasswordHasher(cfg.BcryptCost),
		paging:            newPaging(cfg),
		passwordMinLength: minLen,
		logger:            logger.With("module", "users"),
	}
}

func (s *UserService) hashPassword(pw string) (string, error) {
	if err := checkPassword(pw, s.passwordMinLength); err != nil {
		return "", err
	}
	h, err := s.hasher.Hash(pw)
	if err != nil {
		return "", storageError("hash password", err)
	}
	return h, nil
}

func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*models.User, error) {
	if in.Role == "" {
		in.Role = models.RoleAgent
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", common.ErrorValidation, in.Role)
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	u, err := s.repomanager.Users(s.db).Create(ctx, &models.User{
		Username:     strings.TrimSpace(in.Username),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: hash,
		Role:         in.Role,
		IsActive:     active,
	})
	if err != nil {
		return nil, storageError("create user", err)
	}

	s.logger.Info(ctx, "user created", "user_id", u.ID, "role", u.Role)
	return u, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	u, err := s.repomanager.Users(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, storageError("get user", err)
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context, page, limit int) (*models.Page[models.User], error) {
	page, limit = s.paging.normalize(page, limit)

	items, total, err := s.repomanager.Users(s.db).List(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, storageError("list users", err)
	}
	return &models.Page[models.User]{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// Update applies in to account id on behalf of caller. Callers may edit
// themselves; only admins may edit other accounts, the role or the active flag.
func (s *UserService) Update(ctx context.Context, caller models.Identity, id string, in UpdateUserInput) (*models.User, error) {
	if caller.ID != id && !auth.AdminOnly.Allows(caller.Role) {
		return nil, common.ErrForbidden
	}
	if (in.Role != nil || in.IsActive != nil) && !auth.AdminOnly.Allows(caller.Role) {
		return nil, common.ErrForbidden
	}
	if in.Role != nil && !in.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", common.ErrorValidation, *in.Role)
	}

	upd := models.UserUpdate{Role: in.Role, IsActive: in.IsActive}
	if in.Username != nil {
		v := strings.TrimSpace(*in.Username)
		upd.Username = &v
	}
	if in.Email != nil {
		v := strings.ToLower(strings.TrimSpace(*in.Email))
		upd.Email = &v
	}
	if in.Password != nil {
		hash, err := s.hashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		upd.PasswordHash = &hash
	}
	if upd.Empty() {
		return nil, fmt.Errorf("%w: nothing to update", common.ErrorValidation)
	}

	u, err := s.repomanager.Users(s.db).Update(ctx, id, upd)
	if err != nil {
		return nil, storageError("update user", err)
	}

	s.logger.Info(ctx, "user updated", "user_id", id, "by", caller.ID)
	return u, nil
}

// Delete removes account id. Contacts assigned to it become unassigned.
func (s *UserService) Delete(ctx context.Context, caller models.Identity, id string) error {
	if caller.ID == id {
		return fmt.Errorf("%w: cannot delete your own account", common.ErrorValidation)
	}
	if err := s.repomanager.Users(s.db).Delete(ctx, id); err != nil {
		return storageError("delete user", err)
	}
	s.logger.Info(ctx, "user deleted", "user_id", id, "by", caller.ID)
	return nil
}
