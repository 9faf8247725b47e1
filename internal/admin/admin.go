// Package admin implements the operator commands: applying migrations and
// creating staff accounts from the terminal.
package admin

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/contactkeeper/internal/flagx"
	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
	"github.com/dmitrijs2005/contactkeeper/internal/server/services"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var ErrPasswordMismatch = errors.New("passwords do not match")

type UserCreator interface {
	Create(ctx context.Context, in services.CreateUserInput) (*models.User, error)
}

type CreateUserOptions struct {
	Username string
	Email    string
	Role     models.Role
}

// ParseCreateUser reads -u, -e and -r out of args; other flags are left
// for the config loader.
func ParseCreateUser(args []string) (CreateUserOptions, error) {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var opts CreateUserOptions
	var role string
	fs.StringVar(&opts.Username, "u", "", "username")
	fs.StringVar(&opts.Email, "e", "", "email")
	fs.StringVar(&role, "r", string(models.RoleAgent), "role: admin, manager or agent")

	if err := fs.Parse(flagx.FilterArgs(args, []string{"-u", "-e", "-r"})); err != nil {
		return opts, err
	}
	opts.Role = models.Role(role)

	if opts.Username == "" || opts.Email == "" {
		return opts, errors.New("usage: admin create-user -u <username> -e <email> [-r role]")
	}
	if !opts.Role.Valid() {
		return opts, fmt.Errorf("unknown role %q", role)
	}
	return opts, nil
}

// ReadNewPassword prompts twice without echo and returns the password when
// both entries match. The caller should wipe the result.
func ReadNewPassword(w io.Writer) ([]byte, error) {
	fd := int(os.Stdin.Fd())

	fmt.Fprint(w, "Enter password: ")
	pw, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}

	fmt.Fprint(w, "Repeat password: ")
	again, err := readPassword(fd)
	fmt.Fprintln(w)
	defer wipe(again)
	if err != nil {
		wipe(pw)
		return nil, err
	}

	if !bytes.Equal(pw, again) {
		wipe(pw)
		return nil, ErrPasswordMismatch
	}
	return pw, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// CreateUser prompts for the password and creates an active account.
func CreateUser(ctx context.Context, users UserCreator, opts CreateUserOptions, w io.Writer) error {
	pw, err := ReadNewPassword(w)
	if err != nil {
		return err
	}
	defer wipe(pw)

	active := true
	u, err := users.Create(ctx, services.CreateUserInput{
		Username: opts.Username,
		Email:    opts.Email,
		Password: string(pw),
		Role:     opts.Role,
		IsActive: &active,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "created %s %s (%s)\n", u.Role, u.Username, u.ID)
	return nil
}
