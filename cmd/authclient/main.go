package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/MrEthical07/authclient"
	"github.com/MrEthical07/authclient/credential"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const usage = `usage: authclient [flags] <command> [args]

commands:
  login <username>   authenticate; password from AUTHCLIENT_PASSWORD or stdin
  logout             end the stored session
  whoami             print the current user
  get <path>         GET an API path with the stored session
  can <path>         print the route decision for an application path
`

func main() {
	os.Exit(execute())
}

func execute() int {
	var (
		store     = flag.String("store", "file", "credential store: file or redis")
		credPath  = flag.String("credentials", "", "credential file path (default: user config dir)")
		redisAddr = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		logFormat = flag.String("log-format", "text", "log format: text or json")
		verbose   = flag.Bool("v", false, "debug logging")
		auditLog  = flag.Bool("audit", false, "log session audit events to stderr")
	)
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		return 2
	}

	logger := newLogger(*logFormat, *verbose)

	cfg, err := authclient.LoadConfigFromEnv("AUTHCLIENT")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}

	credStore, cleanup, err := openStore(*store, *credPath, *redisAddr, cfg.Credential, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "credential store: %v\n", err)
		return 1
	}
	defer cleanup()

	builder := authclient.New()
	if *auditLog {
		builder.WithAuditSink(authclient.NewLogAuditSink(slog.New(slog.NewJSONHandler(os.Stderr, nil)).With("component", "audit")))
	}
	client, err := builder.
		WithConfig(cfg).
		WithCredentialStore(credStore).
		WithLogger(logger).
		WithNotifier(authclient.NotifierFunc(func(level authclient.Level, msg string) {
			fmt.Fprintf(os.Stdout, "[%s] %s\n", level, msg)
		})).
		WithNavigator(authclient.NavigatorFunc(func(path string, _ authclient.RedirectOptions) {
			logger.Info("redirect", "path", path)
		})).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build client: %v\n", err)
		return 2
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, client, args); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
			return 2
		}
		fmt.Fprintf(os.Stderr, "%s: %v\n", args[0], err)
		return 1
	}
	return 0
}

var errUsage = errors.New("usage")

func run(ctx context.Context, client *authclient.Client, args []string) error {
	// Bootstrap failures are already reported through the notifier and leave
	// the session anonymous, which every command handles.
	_ = client.Start(ctx)
	m := client.Manager()

	switch args[0] {
	case "login":
		if len(args) != 2 {
			return errUsage
		}
		password, err := readPassword(os.Stdin)
		if err != nil {
			return err
		}
		return m.Authenticate(ctx, args[1], password)

	case "logout":
		m.Logout(ctx)
		return nil

	case "whoami":
		u := client.CurrentUser()
		if u == nil {
			return errors.New("not logged in")
		}
		return printJSON(u)

	case "get":
		if len(args) != 2 {
			return errUsage
		}
		data, err := client.Gateway().Get(ctx, args[1], nil)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return nil
		}
		var out bytes.Buffer
		if err := json.Indent(&out, data, "", "  "); err != nil {
			_, err = os.Stdout.Write(append(data, '\n'))
			return err
		}
		out.WriteByte('\n')
		_, err = out.WriteTo(os.Stdout)
		return err

	case "can":
		if len(args) != 2 {
			return errUsage
		}
		d := client.DecidePath(args[1])
		if d.Kind == authclient.DecisionRedirect {
			fmt.Printf("%s -> %s\n", d.Kind, d.Path)
			return nil
		}
		fmt.Println(d.Kind)
		return nil
	}
	return errUsage
}

func newLogger(format string, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelWarn}
	if verbose {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func openStore(kind, path, addr string, cfg authclient.CredentialConfig, logger *slog.Logger) (credential.Store, func(), error) {
	switch kind {
	case "file":
		if path == "" {
			dir, err := os.UserConfigDir()
			if err != nil {
				return nil, nil, err
			}
			path = filepath.Join(dir, "authclient", "credentials.json")
		}
		return credential.NewFile(path), func() {}, nil

	case "redis":
		if addr == "" {
			addr = os.Getenv("REDIS_ADDR")
		}
		var mr *miniredis.Miniredis
		if addr == "" {
			var err error
			mr, err = miniredis.Run()
			if err != nil {
				return nil, nil, fmt.Errorf("start miniredis: %w", err)
			}
			addr = mr.Addr()
			logger.Warn("no redis address given; using an in-process miniredis, sessions will not persist")
		}
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup := func() {
			_ = rdb.Close()
			if mr != nil {
				mr.Close()
			}
		}
		return credential.NewRedis(rdb, cfg.RedisPrefix, cfg.TTL), cleanup, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", kind)
}

func readPassword(stdin io.Reader) (string, error) {
	if p := os.Getenv("AUTHCLIENT_PASSWORD"); p != "" {
		return p, nil
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password")
	}
	return line, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
