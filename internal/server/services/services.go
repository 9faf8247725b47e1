// Package services contains server-side business logic. Services are
// stateless: each holds the connection pool and a repository manager and
// binds repositories per call, inside a transaction where several writes
// must land together.
package services

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/dmitrijs2005/contactkeeper/internal/common"
	"github.com/dmitrijs2005/contactkeeper/internal/cryptox"
	"github.com/dmitrijs2005/contactkeeper/internal/server/config"
)

// storageError keeps the sentinels callers branch on and folds everything
// else into ErrorInternal.
func storageError(op string, err error) error {
	if errors.Is(err, common.ErrorNotFound) || errors.Is(err, common.ErrorAlreadyExists) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", common.ErrorInternal, op, err)
}

// checkPassword enforces minLen characters and the bcrypt input limit.
func checkPassword(pw string, minLen int) error {
	if utf8.RuneCountInString(pw) < minLen {
		return fmt.Errorf("%w: must be at least %d characters", common.ErrPasswordTooShort, minLen)
	}
	if len(pw) > cryptox.MaxPasswordBytes {
		return fmt.Errorf("%w: must be at most %d bytes", common.ErrPasswordTooLong, cryptox.MaxPasswordBytes)
	}
	return nil
}

type paging struct {
	def, max int
}

func newPaging(cfg *config.Config) paging {
	p := paging{def: cfg.DefaultPageSize, max: cfg.MaxPageSize}
	if p.def <= 0 {
		p.def = 10
	}
	if p.max < p.def {
		p.max = p.def
	}
	return p
}

// normalize clamps page to >= 1 and limit to 1..max.
func (p paging) normalize(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = p.def
	}
	if limit > p.max {
		limit = p.max
	}
	return page, limit
}
