package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"github.com/bobmcallan/folio-portal/internal/client"
	"github.com/bobmcallan/folio-portal/internal/models"
	"github.com/bobmcallan/folio-portal/internal/session"
)

type loginCmd struct {
	username string
	email    string
	register bool
}

func (*loginCmd) Name() string     { return "login" }
func (*loginCmd) Synopsis() string { return "log in to folio-server (or register a new account)" }
func (*loginCmd) Usage() string {
	return `folio login -u <username> [-register -email <email>]

  Logs in and keeps the session for later commands. The password is read
  from FOLIO_PASSWORD, or prompted for on stdin.
`
}

func (c *loginCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.username, "u", "", "Username")
	f.StringVar(&c.email, "email", "", "Email address (with -register)")
	f.BoolVar(&c.register, "register", false, "Create the account instead of logging in")
}

func (c *loginCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.username == "" {
		fmt.Fprintln(os.Stderr, "Error: -u is required")
		return subcommands.ExitUsageError
	}
	password, err := readPassword()
	if err != nil {
		fail(err)
		return subcommands.ExitUsageError
	}

	e, err := openEnv()
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	creds := models.Credentials{Username: c.username, Email: c.email, Password: password}
	var sess session.Session
	if c.register {
		sess, err = e.sessions.Register(ctx, creds)
	} else {
		sess, err = e.sessions.Login(ctx, creds)
	}
	if errors.Is(err, client.ErrUnauthorized) {
		fail(errors.New("invalid username or password"))
		return subcommands.ExitFailure
	}
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}

	// A previous session of this terminal is replaced.
	if prev, err := e.current(ctx); err == nil && prev.ID != sess.ID {
		e.sessions.Logout(ctx, prev.ID)
	}
	if err := e.remember(ctx, sess); err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Logged in as %s\n", sess.User.Username)
	return subcommands.ExitSuccess
}

func readPassword() (string, error) {
	if p := os.Getenv("FOLIO_PASSWORD"); p != "" {
		return p, nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("no password given: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

type logoutCmd struct{}

func (*logoutCmd) Name() string             { return "logout" }
func (*logoutCmd) Synopsis() string         { return "end the current session" }
func (*logoutCmd) Usage() string            { return "folio logout\n" }
func (*logoutCmd) SetFlags(f *flag.FlagSet) {}

func (*logoutCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv()
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	sess, err := e.current(ctx)
	if err == nil {
		if err := e.sessions.Logout(ctx, sess.ID); err != nil && !errors.Is(err, session.ErrNoSession) {
			e.logger.Warn().Err(err).Msg("logout incomplete")
		}
	}
	if err := e.forget(ctx); err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	fmt.Println("Logged out")
	return subcommands.ExitSuccess
}

type whoamiCmd struct{}

func (*whoamiCmd) Name() string             { return "whoami" }
func (*whoamiCmd) Synopsis() string         { return "show the logged-in user" }
func (*whoamiCmd) Usage() string            { return "folio whoami\n" }
func (*whoamiCmd) SetFlags(f *flag.FlagSet) {}

func (*whoamiCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv()
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	sess, err := e.current(ctx)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	user, err := e.client.Me(client.WithToken(ctx, sess.Token))
	if errors.Is(err, client.ErrUnauthorized) {
		e.sessions.Drop(ctx, sess.ID)
		e.forget(ctx)
		fail(errNotLoggedIn)
		return subcommands.ExitFailure
	}
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	if _, err := e.sessions.SetUser(ctx, sess.ID, *user); err != nil {
		e.logger.Warn().Err(err).Msg("failed to cache user")
	}

	verified := "no"
	if user.Verified {
		verified = "yes"
	}
	printMarkdown(fmt.Sprintf("# %s\n\n- **Email:** %s\n- **Verified:** %s\n- **Selected portfolio:** %s\n",
		user.Username, user.Email, verified, orDash(sess.SelectedPortfolioID.String())))
	return subcommands.ExitSuccess
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
