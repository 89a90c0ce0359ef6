package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MrEthical07/goSession/internal/devserver"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		addr        = flag.String("addr", "127.0.0.1:8000", "listen address")
		prefix      = flag.String("prefix", "/api/v1", "route prefix")
		signingKey  = flag.String("signing-key", "", "HS256 key; if empty, DEVAPI_SIGNING_KEY env or a fixed development key is used")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		accessTTL   = flag.Duration("access-ttl", 5*time.Minute, "access token lifetime")
		refreshTTL  = flag.Duration("refresh-ttl", 24*time.Hour, "refresh token lifetime")
		rotate      = flag.Bool("rotate", true, "rotate and blacklist refresh tokens")
		maxAttempts = flag.Int("max-login-attempts", 5, "failed logins per window before throttling; 0 disables")
		seed        = flag.String("seed", "", "comma separated users to create, each email:password[:full name]")
	)
	flag.Parse()

	key := *signingKey
	if key == "" {
		key = os.Getenv("DEVAPI_SIGNING_KEY")
	}
	if key == "" {
		key = "devapi-insecure-development-key"
		log.Printf("devapi: using the built-in signing key")
	}

	client, cleanup, err := openRedis(*redisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	srv, err := devserver.New(devserver.Config{
		Prefix:           *prefix,
		SigningKey:       []byte(key),
		AccessTTL:        *accessTTL,
		RefreshTTL:       *refreshTTL,
		RotateRefresh:    *rotate,
		Redis:            client,
		MaxLoginAttempts: *maxAttempts,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "devapi: %v\n", err)
		os.Exit(2)
	}

	if err := seedUsers(srv, *seed); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(2)
	}

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           srv,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("devapi: listening on http://%s%s/", *addr, srv.Prefix())
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(os.Stderr, "devapi: %v\n", err)
		os.Exit(1)
	}
}

func openRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		log.Printf("devapi: using redis at %s", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	log.Printf("devapi: using miniredis at %s", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func seedUsers(srv *devserver.Server, spec string) error {
	if strings.TrimSpace(spec) == "" {
		return nil
	}
	for _, entry := range strings.Split(spec, ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), ":", 3)
		if len(parts) < 2 {
			return fmt.Errorf("invalid seed %q: want email:password[:full name]", entry)
		}
		fullName := ""
		if len(parts) == 3 {
			fullName = parts[2]
		}
		id, err := srv.AddUser(fullName, parts[0], parts[1])
		if err != nil {
			return fmt.Errorf("%s: %w", parts[0], err)
		}
		log.Printf("devapi: seeded user %s (id %s)", parts[0], id)
	}
	return nil
}
