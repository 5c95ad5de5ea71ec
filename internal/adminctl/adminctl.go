// Package adminctl implements the provisioning commands run outside the
// HTTP server: creating the first superuser and granting administrator
// membership to an existing account.
package adminctl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/gin-org/sitebackend/internal/common"
	"github.com/gin-org/sitebackend/internal/server/models"
)

const (
	CommandEnsureSuperuser = "ensure-superuser"
	CommandGrant           = "grant"
)

// Environment variables read by ensure-superuser before prompting.
const (
	EnvSuperuserUsername = "SUPERUSER_USERNAME"
	EnvSuperuserEmail    = "SUPERUSER_EMAIL"
	EnvSuperuserPassword = "SUPERUSER_PASSWORD"
)

var (
	ErrUnknownCommand  = errors.New("unknown command")
	ErrMissingArgument = errors.New("missing argument")
)

// Provisioner is the part of the account service the commands drive.
type Provisioner interface {
	EnsureSuperuser(ctx context.Context, username, email, password string) (bool, error)
	ProvisionAdministrator(ctx context.Context, username string) (*models.Account, error)
}

// Runner executes a single provisioning command.
type Runner struct {
	Provisioner Provisioner
	In          *bufio.Reader
	Out         io.Writer
	Getenv      func(string) string
}

// Command returns the arguments from the first known command onwards, so
// configuration flags may precede it on the command line.
func Command(args []string) []string {
	commands := []string{CommandEnsureSuperuser, CommandGrant}
	for i, a := range args {
		if slices.Contains(commands, a) {
			return args[i:]
		}
	}
	return nil
}

func (r *Runner) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: expected %s or %s", ErrMissingArgument, CommandEnsureSuperuser, CommandGrant)
	}

	switch args[0] {
	case CommandEnsureSuperuser:
		return r.ensureSuperuser(ctx)
	case CommandGrant:
		if len(args) < 2 || args[1] == "" {
			return fmt.Errorf("%w: usage: %s <username>", ErrMissingArgument, CommandGrant)
		}
		return r.grant(ctx, args[1])
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, args[0])
	}
}

func (r *Runner) ensureSuperuser(ctx context.Context) error {
	username, err := r.valueOrPrompt(EnvSuperuserUsername, "Username")
	if err != nil {
		return err
	}
	email, err := r.valueOrPrompt(EnvSuperuserEmail, "Email address")
	if err != nil {
		return err
	}

	password := r.Getenv(EnvSuperuserPassword)
	if password == "" {
		pw, err := GetPassword(r.Out)
		if err != nil {
			return fmt.Errorf("error reading password: %w", err)
		}
		password = string(pw)
		common.WipeByteArray(pw)
	}

	created, err := r.Provisioner.EnsureSuperuser(ctx, username, email, password)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(r.Out, "Superuser %q created.\n", username)
	} else {
		fmt.Fprintln(r.Out, "Superuser already exists, nothing to do.")
	}
	return nil
}

func (r *Runner) grant(ctx context.Context, username string) error {
	account, err := r.Provisioner.ProvisionAdministrator(ctx, username)
	if err != nil {
		return fmt.Errorf("error granting administrator to %q: %w", username, err)
	}
	fmt.Fprintf(r.Out, "%s (%s) is now an administrator.\n", account.Username, account.ID)
	return nil
}

func (r *Runner) valueOrPrompt(env, prompt string) (string, error) {
	if v := r.Getenv(env); v != "" {
		return v, nil
	}
	return GetSimpleText(r.In, prompt, r.Out)
}
