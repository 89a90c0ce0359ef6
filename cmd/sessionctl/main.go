package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/api"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const usage = `usage: sessionctl [flags] <command> [args]

commands:
  login <email> <password>
  register <full name> <email> <password> <confirm>
  whoami
  refresh
  get <path>
  reset-password <email>
  logout

Configuration is read from GOSESSION_* variables; flags override them.
`

func main() {
	var (
		baseURL   = flag.String("base-url", "", "account API base URL (GOSESSION_API_BASE_URL)")
		storage   = flag.String("storage", "", "credential storage: sqlite, redis or memory (GOSESSION_STORAGE_DRIVER)")
		dbPath    = flag.String("db", "", "sqlite path (GOSESSION_STORAGE_SQLITE_PATH)")
		redisAddr = flag.String("redis-addr", "", "redis address; \"mini\" starts an in-process miniredis")
		timeout   = flag.Duration("timeout", 30*time.Second, "overall command timeout")
		verbose   = flag.Bool("v", false, "print audit events to stderr")
	)
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := goSession.DefaultConfig()
	// A CLI session must outlive the process.
	cfg.Storage.Driver = goSession.StorageSQLite
	if err := goSession.OverlayEnv(&cfg); err != nil {
		fail(err)
	}
	if *baseURL != "" {
		cfg.API.BaseURL = *baseURL
	}
	if *storage != "" {
		cfg.Storage.Driver = goSession.StorageDriver(*storage)
	}
	if *dbPath != "" {
		cfg.Storage.SQLitePath = *dbPath
	}
	cfg.Audit.Enabled = *verbose
	cfg.Audit.DropIfFull = false

	builder := goSession.New().WithConfig(cfg)
	if *verbose {
		builder.WithAuditSink(goSession.NewJSONWriterSink(os.Stderr))
	}

	switch {
	case *redisAddr == "mini":
		mr, err := miniredis.Run()
		if err != nil {
			fail(err)
		}
		defer mr.Close()
		rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer rc.Close()
		builder.WithRedis(rc)
	case *redisAddr != "":
		cfg.Storage.Driver = goSession.StorageRedis
		cfg.Storage.RedisAddr = *redisAddr
		builder.WithConfig(cfg)
	}

	client, err := builder.Build()
	if err != nil {
		fail(err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(goSession.WithRequestID(context.Background(), ""), *timeout)
	defer cancel()

	if err := run(ctx, client, flag.Arg(0), flag.Args()[1:]); err != nil {
		cancel()
		_ = client.Close()
		fail(err)
	}
}

func run(ctx context.Context, client *goSession.Client, cmd string, args []string) error {
	switch cmd {
	case "login":
		if len(args) != 2 {
			return fmt.Errorf("login: want <email> <password>")
		}
		id, err := client.Login(ctx, api.LoginRequest{Email: args[0], Password: args[1]})
		if err != nil {
			return err
		}
		fmt.Printf("logged in as %s (%s)\n", id.DisplayName, id.SubjectID)
		return nil

	case "register":
		if len(args) != 4 {
			return fmt.Errorf("register: want <full name> <email> <password> <confirm>")
		}
		resp, id, err := client.Register(ctx, api.RegisterRequest{
			FullName:  args[0],
			Email:     args[1],
			Password:  args[2],
			Password2: args[3],
		})
		if resp != nil {
			fmt.Printf("registered %s <%s>\n", resp.FullName, resp.Email)
		}
		if err != nil {
			return err
		}
		fmt.Printf("logged in as %s (%s)\n", id.DisplayName, id.SubjectID)
		return nil

	case "whoami":
		id, err := client.Resolve(ctx)
		if err != nil {
			return err
		}
		if id == nil {
			fmt.Println("not logged in")
			return nil
		}
		fmt.Printf("%s <%s> id=%s state=%s\n", id.DisplayName, id.Email, id.SubjectID, client.State(ctx))
		return nil

	case "refresh":
		_, ok, err := client.EnsureFreshCredentials(ctx)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("not logged in")
			return nil
		}
		fmt.Printf("state=%s\n", client.State(ctx))
		return nil

	case "get":
		if len(args) != 1 {
			return fmt.Errorf("get: want <path>")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimPrefix(args[0], "/"), nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		fmt.Fprintf(os.Stderr, "%s\n", resp.Status)
		_, err = io.Copy(os.Stdout, resp.Body)
		return err

	case "reset-password":
		if len(args) != 1 {
			return fmt.Errorf("reset-password: want <email>")
		}
		if err := client.RequestPasswordReset(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("password reset email sent")
		return nil

	case "logout":
		client.Logout(ctx)
		fmt.Println("logged out")
		return nil

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "sessionctl: %v\n", err)
	os.Exit(1)
}
