package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/tourney-finder/admins"
	"github.com/jrsteele09/tourney-finder/admins/repogorm"
	"github.com/jrsteele09/tourney-finder/authflow"
	"github.com/jrsteele09/tourney-finder/identity"
	"github.com/jrsteele09/tourney-finder/internal/config"
	"github.com/jrsteele09/tourney-finder/loginstate"
	"github.com/jrsteele09/tourney-finder/server"
	"github.com/jrsteele09/tourney-finder/sessions"
)

const sweepInterval = time.Minute

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return err
	}
	configureLogging(c)
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stateRepo, sessionRepo, closeStores, err := newStores(ctx, c)
	if err != nil {
		return err
	}
	defer closeStores()

	if err := os.MkdirAll(c.GetDataFolder(), 0o700); err != nil {
		return fmt.Errorf("create data folder: %w", err)
	}
	adminRepo, err := repogorm.OpenSqlite(filepath.Join(c.GetDataFolder(), "admin.db"))
	if err != nil {
		return err
	}
	defer adminRepo.Close()

	provider, err := identity.New(identity.Config{
		ClientID:           c.GetClientID(),
		ClientSecret:       c.GetClientSecret(),
		AuthURL:            c.GetAuthURL(),
		TokenURL:           c.GetTokenURL(),
		APIURL:             c.GetAPIURL(),
		RedirectURL:        c.GetBaseURL() + server.RouteCallback,
		Scopes:             c.GetScopes(),
		RequestTimeout:     c.GetRequestTimeout(),
		MaxRetries:         c.GetMaxRetries(),
		RetryBaseDelay:     c.GetRetryBaseDelay(),
		MinRequestInterval: c.GetMinRequestInterval(),
	})
	if err != nil {
		return err
	}

	states := loginstate.New(stateRepo, loginstate.WithTTL(c.GetStateTTL()))
	sessionManager := sessions.NewManager(sessionRepo, adminRepo, sessions.WithMaxAge(c.GetMaxSessionAge()))
	authorizer := admins.NewAuthorizer(admins.NewAllowList(c.GetAdminProviderIDs()...), adminRepo)
	flow := authflow.NewController(states, provider, authorizer, sessionManager)

	go states.RunSweeper(ctx, sweepInterval)
	go sessionManager.RunSweeper(ctx, sweepInterval)

	handler, err := server.New(c, flow, sessionManager)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(httpServer)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

// newStores picks Redis when REDIS_ADDR is set and in-memory repos otherwise.
func newStores(ctx context.Context, c config.Config) (loginstate.Repo, sessions.Repo, func(), error) {
	if c.GetRedisAddr() == "" {
		log.Warn().Msg("REDIS_ADDR not set, logins and sessions are kept in memory")
		return loginstate.NewInMemoryRepo(), sessions.NewInMemoryRepo(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     c.GetRedisAddr(),
		Password: c.GetRedisPassword(),
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("connect to redis at %s: %w", c.GetRedisAddr(), err)
	}
	log.Info().Str("addr", c.GetRedisAddr()).Msg("Using redis for logins and sessions")
	return loginstate.NewRedisRepo(client), sessions.NewRedisRepo(client), func() { _ = client.Close() }, nil
}

func configureLogging(c config.Config) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
