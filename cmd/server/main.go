package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/facilitaservicos/authcore/identity"
	"github.com/facilitaservicos/authcore/identity/redisrepo"
	"github.com/facilitaservicos/authcore/internal/config"
	"github.com/facilitaservicos/authcore/otp"
	"github.com/facilitaservicos/authcore/otp/redisstore"
	"github.com/facilitaservicos/authcore/password"
	"github.com/facilitaservicos/authcore/presence"
	"github.com/facilitaservicos/authcore/token"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	repoCacheTTL      = 30 * time.Second
	repoRetryAttempts = 3
	repoRetryDelay    = 100 * time.Millisecond
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running service: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Service stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config.Load")
	}
	displayAppname(c.AppName)
	logger := newLogger(c)

	client := redis.NewClient(&redis.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	})
	defer client.Close()
	if err := client.Ping(context.Background()).Err(); err != nil {
		return errors.Wrap(err, "redis ping")
	}

	// Building the manager validates the full wiring at startup; a
	// transport layer consumes it once one is mounted.
	_, ring, err := buildManager(c, client, logger)
	if err != nil {
		return err
	}

	rotation := startKeyRotation(ring, c.KeyRotationInterval, logger)
	defer rotation.Stop()

	logger.Info().Str("redis", c.RedisAddr).Msg("credential service ready")
	waitForStopSignal()
	logger.Info().Msg("shutting down")
	return nil
}

// buildManager wires the credential repository, ephemeral store, signing
// keys, and policies into the token lifecycle manager.
func buildManager(c config.Config, client *redis.Client, logger zerolog.Logger) (*token.Manager, *token.KeyRing, error) {
	var repo identity.Repo = redisrepo.New(client)
	repo = identity.NewRetryingRepo(repo, repoRetryAttempts, repoRetryDelay)
	repo = identity.NewCachingRepo(repo, repoCacheTTL)

	store := redisstore.New(client)
	codes := otp.NewManager(store, otp.WithTTL(c.OneTimeCodeTTL), otp.WithLogger(logger))

	ring, err := newKeyRing(c)
	if err != nil {
		return nil, nil, err
	}
	signer := token.NewKeyRingSigner(ring, c.KeyRotationGrace)

	engine := password.NewEngine(
		password.WithMinScore(c.PasswordMinScore),
		password.WithLengthBounds(c.PasswordMinLength, c.PasswordMaxLength),
		password.WithExpiryDays(c.PasswordExpiryDays),
	)

	manager, err := token.New(repo, signer, engine,
		token.WithIssuer(c.Issuer),
		token.WithAudience(c.Audience),
		token.WithTokenExpiry(c.AccessTokenTTL, c.RefreshTokenTTL),
		token.WithClockSkewLeeway(c.ClockSkewLeeway),
		token.WithLockoutPolicy(c.LockoutThreshold, c.LockoutWindow),
		token.WithSecondFactor(codes),
		token.WithRevokedTokenCache(token.NewStoreRevokedTokenCache(store)),
		token.WithPresenceTracker(presence.NewTracker()),
		token.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, errors.Wrap(err, "token.New")
	}
	return manager, ring, nil
}

func newKeyRing(c config.Config) (*token.KeyRing, error) {
	if c.SigningSecret != "" {
		return token.NewKeyRingFromSecret("env-primary", []byte(c.SigningSecret)), nil
	}
	ring, err := token.NewKeyRing()
	if err != nil {
		return nil, errors.Wrap(err, "token.NewKeyRing")
	}
	return ring, nil
}

func startKeyRotation(ring *token.KeyRing, interval time.Duration, logger zerolog.Logger) *time.Ticker {
	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			if err := ring.Rotate(); err != nil {
				logger.Error().Err(err).Msg("signing key rotation failed")
				continue
			}
			logger.Info().Msg("signing key rotated")
		}
	}()
	return ticker
}

func newLogger(c config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(level).With().
		Timestamp().
		Str("app", c.AppName).
		Logger()
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
