package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/agent-orchestrator/core/internal/adapter/securefile"
	"github.com/agent-orchestrator/core/internal/config"
	"github.com/agent-orchestrator/core/internal/logger"
	"github.com/agent-orchestrator/core/internal/port/broadcast"
	"github.com/agent-orchestrator/core/internal/port/gitprovider"
	"github.com/agent-orchestrator/core/internal/resilience"
	"github.com/agent-orchestrator/core/internal/service"
)

// runConnect links a provider account from the terminal, without the HTTP
// API. Tokens and app passwords are prompted with echo disabled.
func runConnect(args []string) error {
	fs := flag.NewFlagSet("connect", flag.ContinueOnError)
	provider := fs.String("provider", "", "provider to connect: github, gitlab, or bitbucket (required)")
	username := fs.String("username", "", "account username (Bitbucket app passwords only)")
	device := fs.Bool("device", false, "use the OAuth device flow instead of a token prompt")
	fs.Usage = printConnectHelp
	if err := fs.Parse(args); err != nil {
		return err
	}

	t := gitprovider.Type(*provider)
	if !t.Valid() {
		printConnectHelp()
		return fmt.Errorf("unknown provider %q", *provider)
	}

	svc, err := loadConnectDeps()
	if err != nil {
		return err
	}

	ctx := context.Background()
	var user *gitprovider.User

	switch {
	case *device:
		user, err = connectWithDeviceFlow(ctx, svc, t)
	case *username != "":
		var appPassword string
		appPassword, err = promptSecret("App password: ")
		if err == nil {
			user, err = svc.ConnectWithAppPassword(ctx, t, *username, appPassword)
		}
	default:
		var token string
		token, err = promptSecret("Access token: ")
		if err == nil {
			user, err = svc.ConnectWithToken(ctx, t, token)
		}
	}
	if err != nil {
		return err
	}

	login := ""
	if user != nil {
		login = user.Login
	}
	fmt.Fprintf(os.Stderr, "Connected to %s as %s\n", t, login)
	return nil
}

func connectWithDeviceFlow(ctx context.Context, svc *service.ProviderService, t gitprovider.Type) (*gitprovider.User, error) {
	auth, err := svc.StartDeviceFlow(ctx, t)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(os.Stderr, "Open %s and enter code: %s\n", auth.VerificationURL, auth.UserCode)
	fmt.Fprintln(os.Stderr, "Waiting for authorization...")

	return svc.CompleteDeviceFlow(ctx, t, auth)
}

func loadConnectDeps() (*service.ProviderService, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.Logging)

	creds, err := securefile.New(cfg.Storage.DataDir, cfg.Storage.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("credential store: %w", err)
	}

	httpClient := &http.Client{
		Timeout:   cfg.HTTP.Timeout,
		Transport: resilience.NewTransport(nil, 5, 30*time.Second),
	}
	registry, err := service.NewRegistry(cfg.Storage.DataDir, creds, httpClient, log)
	if err != nil {
		return nil, fmt.Errorf("provider registry: %w", err)
	}

	return service.NewProviderService(registry, broadcast.Noop{}, nil, log), nil
}

func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func printConnectHelp() {
	fmt.Fprintf(os.Stderr, `Usage: orchestrator connect --provider <name> [options]

Options:
  --provider   github, gitlab, or bitbucket (required)
  --username   connect with a Bitbucket app password for this username
  --device     use the OAuth device flow (github, gitlab)

Examples:
  orchestrator connect --provider github --device
  orchestrator connect --provider gitlab
  orchestrator connect --provider bitbucket --username mjones
`)
}
