// Package admin implements the operator commands: creating an admin,
// promoting an existing user and force-removing an account.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/cryptexdrive/internal/common"
	"github.com/dmitrijs2005/cryptexdrive/internal/prompt"
)

var ErrUsage = errors.New("usage: cryptex-admin [flags] create-admin <username> <email> | promote <username> | delete <username>")

type Accounts interface {
	CreateAdmin(ctx context.Context, username, password, email string) (bool, error)
	PromoteAdmin(ctx context.Context, username string) error
}

type Purger interface {
	PurgeAccount(ctx context.Context, username string) error
}

type Tool struct {
	accounts Accounts
	purger   Purger
	prompt   *prompt.Prompter
}

func NewTool(accounts Accounts, purger Purger, p *prompt.Prompter) *Tool {
	return &Tool{accounts: accounts, purger: purger, prompt: p}
}

// Run executes one command given as positional arguments.
func (t *Tool) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "create-admin":
		if len(rest) != 2 {
			return ErrUsage
		}
		return t.createAdmin(ctx, rest[0], rest[1])
	case "promote":
		if len(rest) != 1 {
			return ErrUsage
		}
		return t.promote(ctx, rest[0])
	case "delete":
		if len(rest) != 1 {
			return ErrUsage
		}
		return t.delete(ctx, rest[0])
	default:
		return ErrUsage
	}
}

func (t *Tool) createAdmin(ctx context.Context, username, email string) error {
	pw, err := t.prompt.Password("Enter password")
	if err != nil {
		return err
	}
	again, err := t.prompt.Password("Repeat password")
	if err != nil {
		return err
	}
	if pw != again {
		return errors.New("passwords do not match")
	}

	if _, err := t.accounts.CreateAdmin(ctx, username, pw, email); err != nil {
		if errors.Is(err, common.ErrDuplicateIdentity) {
			return fmt.Errorf("user %q or email %q already exists", username, email)
		}
		return err
	}
	t.prompt.Printf("admin %q created\n", username)
	return nil
}

func (t *Tool) promote(ctx context.Context, username string) error {
	if err := t.accounts.PromoteAdmin(ctx, username); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("user %q not found", username)
		}
		return err
	}
	t.prompt.Printf("%q is now an admin\n", username)
	return nil
}

func (t *Tool) delete(ctx context.Context, username string) error {
	answer, err := t.prompt.Text(fmt.Sprintf("This removes %q and every stored file. Type the username to confirm", username))
	if err != nil {
		return err
	}
	if strings.TrimSpace(answer) != username {
		t.prompt.Println("aborted")
		return nil
	}

	if err := t.purger.PurgeAccount(ctx, username); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("user %q not found", username)
		}
		return err
	}
	t.prompt.Printf("%q deleted\n", username)
	return nil
}
