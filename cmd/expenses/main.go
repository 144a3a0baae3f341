// Command expenses is the client: it resolves the signed-in user from an ID
// token, builds the expense store over the configured backend and runs one
// command against it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"expenses/internal/backend"
	"expenses/internal/config"
	"expenses/internal/identity"
	"expenses/internal/log"
	"expenses/internal/store"
)

const usage = `usage: expenses <command> [flags]

commands:
  add      -title T -amount A -category C [-note N] [-date YYYY-MM-DD]
  list     list every expense, newest first
  filter   -category C (or "all")
  update   -id ID [-title T] [-amount A] [-category C] [-note N] [-date YYYY-MM-DD]
  delete   -id ID
  totals   amount per category
  token    -user ID [-email E] [-name N] [-ttl 24h]   mint a development ID token

configuration comes from the environment, .env and EXPENSES_CONFIG.
`

var errUsage = errors.New("invalid usage")

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) && !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" {
		fmt.Fprint(stderr, usage)
		return errUsage
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := log.New(log.Config{
		Level:  log.ParseLevel(cfg.LogLevel),
		Writer: stderr,
	})

	name, rest := args[0], args[1:]
	if name == "token" {
		return runToken(cfg, rest, stdout, stderr)
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", name, usage)
		return errUsage
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger, nil).CreateBackend(ctx, bcfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Warn("Backend cleanup failed", log.FieldError, err)
		}
	}()

	session := identity.NewSession(logger)
	signIn(session, cfg, logger)

	s := store.New(session, res.Collection, logger).WithCollection(cfg.Collection)
	defer s.Close()

	ctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()

	return cmd(ctx, &client{store: s, session: session, out: stdout, errOut: stderr}, rest)
}

// signIn resolves the session from ID_TOKEN. With JWT_SECRET set the token is
// verified locally; otherwise only its claims are read and the remote server
// is trusted to reject a forged token.
func signIn(session *identity.Session, cfg *config.Config, logger *log.Logger) {
	if cfg.IDToken == "" {
		session.SignOut()
		return
	}
	var v identity.Verifier = identity.NewClaimsReader()
	if cfg.JWTSecret != "" {
		v = identity.NewTokenVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer)
	}
	if err := session.SignInWithToken(v, cfg.IDToken); err != nil {
		logger.Warn("ID token rejected", log.FieldError, err)
	}
}
