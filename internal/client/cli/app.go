// Package cli is the interactive CryptexDrive client.
package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/cryptexdrive/internal/client/client"
	"github.com/dmitrijs2005/cryptexdrive/internal/prompt"
)

type Custody interface {
	Register(ctx context.Context, username, password, email string) error
	Login(ctx context.Context, username, password string) error
	VerifyOTP(ctx context.Context, username, code string) (*client.Session, error)
	Logout(ctx context.Context) error
	Whoami(ctx context.Context) (*client.Identity, error)
	Upload(ctx context.Context, name string, data []byte) (*client.UploadResult, error)
	Download(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context) ([]string, error)
	DeleteAccount(ctx context.Context, password string) error
	AuditLogs(ctx context.Context, limit int) ([]client.AuditEntry, error)
	Stats(ctx context.Context) (*client.Stats, error)
}

type App struct {
	custody  Custody
	prompt   *prompt.Prompter
	userName string
}

func NewApp(c Custody, p *prompt.Prompter) *App {
	return &App{custody: c, prompt: p}
}

func (a *App) status() string {
	if a.userName == "" {
		return ""
	}
	return "(" + a.userName + ") "
}

// Run reads commands until exit or end of input.
func (a *App) Run(ctx context.Context) {
	a.prompt.Println("Welcome to CryptexDrive CLI (type 'help' for commands)")

	for {
		line, err := a.prompt.Line("cryptex " + a.status() + "> ")
		if err != nil {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		cmd, args := parts[0], parts[1:]
		switch cmd {
		case "help":
			a.prompt.Println("Available commands: register, login, whoami, list, upload <path>, download <name> [dest], logout, delete-account, logs [n], stats, exit")
		case "register":
			err = a.register(ctx)
		case "login":
			err = a.login(ctx)
		case "whoami":
			err = a.whoami(ctx)
		case "list", "l":
			err = a.list(ctx)
		case "upload":
			err = a.upload(ctx, args)
		case "download":
			err = a.download(ctx, args)
		case "logout":
			err = a.custody.Logout(ctx)
			a.userName = ""
		case "delete-account":
			err = a.deleteAccount(ctx)
		case "logs":
			err = a.logs(ctx, args)
		case "stats":
			err = a.stats(ctx)
		case "exit", "quit":
			a.prompt.Println("Bye!")
			return
		default:
			a.prompt.Println("unknown command, type 'help'")
		}
		if err != nil {
			a.prompt.Println("error:", err)
		}
	}
}

func (a *App) register(ctx context.Context) error {
	username, err := a.prompt.Text("Username")
	if err != nil {
		return err
	}
	email, err := a.prompt.Text("Email")
	if err != nil {
		return err
	}
	password, err := a.prompt.Password("Enter password")
	if err != nil {
		return err
	}
	if err := a.custody.Register(ctx, username, password, email); err != nil {
		return err
	}
	a.prompt.Println("registered, you can login now")
	return nil
}

func (a *App) login(ctx context.Context) error {
	username, err := a.prompt.Text("Username")
	if err != nil {
		return err
	}
	password, err := a.prompt.Password("Enter password")
	if err != nil {
		return err
	}
	if err := a.custody.Login(ctx, username, password); err != nil {
		return err
	}

	code, err := a.prompt.Text("A one-time code was sent to your email. Code")
	if err != nil {
		return err
	}
	s, err := a.custody.VerifyOTP(ctx, username, code)
	if err != nil {
		return err
	}

	a.userName = username
	a.prompt.Printf("logged in until %s\n", s.ExpiresAt.Format("15:04:05"))
	return nil
}

func (a *App) whoami(ctx context.Context) error {
	id, err := a.custody.Whoami(ctx)
	if err != nil {
		return err
	}
	role := "user"
	if id.IsAdmin {
		role = "admin"
	}
	a.prompt.Printf("%s (%s), token valid until %s\n", id.Username, role, id.ExpiresAt.Format("15:04:05"))
	return nil
}

func (a *App) list(ctx context.Context) error {
	names, err := a.custody.List(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		a.prompt.Println("no files")
	}
	for _, n := range names {
		a.prompt.Println(n)
	}
	return nil
}

func (a *App) upload(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: upload <path>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	res, err := a.custody.Upload(ctx, filepath.Base(args[0]), data)
	if err != nil {
		return err
	}
	a.prompt.Printf("stored as %s (risk %d: %s)\n", res.Name, res.RiskScore, res.Analysis)
	if res.Revoked {
		a.userName = ""
		a.prompt.Println("the upload was flagged; your session has been ended")
	}
	return nil
}

func (a *App) download(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: download <name> [dest]")
	}
	dest := args[0]
	if len(args) == 2 {
		dest = args[1]
	}

	data, err := a.custody.Download(ctx, args[0])
	if err != nil {
		return err
	}
	if err := os.WriteFile(dest, data, 0o600); err != nil {
		return err
	}
	a.prompt.Printf("saved %d bytes to %s\n", len(data), dest)
	return nil
}

func (a *App) deleteAccount(ctx context.Context) error {
	password, err := a.prompt.Password("Enter password to delete your account and all files")
	if err != nil {
		return err
	}
	if err := a.custody.DeleteAccount(ctx, password); err != nil {
		return err
	}
	a.userName = ""
	a.prompt.Println("account deleted")
	return nil
}

func (a *App) logs(ctx context.Context, args []string) error {
	limit := 0
	if len(args) > 1 {
		return errors.New("usage: logs [n]")
	}
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return errors.New("usage: logs [n]")
		}
		limit = n
	}

	entries, err := a.custody.AuditLogs(ctx, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		a.prompt.Println("no events")
	}
	for _, e := range entries {
		a.prompt.Printf("%s  %-12s %-24s %-12s %s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Username, e.Action, e.Status, e.SourceAddress)
	}
	return nil
}

func (a *App) stats(ctx context.Context) error {
	st, err := a.custody.Stats(ctx)
	if err != nil {
		return err
	}
	a.prompt.Printf("users: %d\nfiles: %d (quarantined %d)\naverage risk: %.1f\nrisk: safe %d, warning %d, critical %d\n",
		st.TotalUsers, st.TotalFiles, st.Quarantined, st.AvgRisk, st.Safe, st.Warning, st.Critical)
	return nil
}
