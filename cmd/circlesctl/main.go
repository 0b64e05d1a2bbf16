// Package main is circlesctl, the local operator CLI for the circles core.
// Every command runs against a local store file, or a shared Redis/Postgres
// backend when configured; there is no network listener.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"circles"
	"circles/internal/audit"
	"circles/internal/kv"
	"circles/internal/kv/bolt"
	"circles/internal/kv/postgres"
	"circles/internal/kv/redis"
	"circles/internal/platform/config"
	"circles/internal/platform/logger"
	"circles/pkg/domain"
)

const usage = `circlesctl manages a local circles store.

Usage:
  circlesctl <command> [flags]

Commands:
  init        create a local identity
  status      show an identity and its connections
  set-signal  set the caller's capacity signal
  invite      create a one-time invite
  accept      accept an invite
  revoke      revoke a connection
  block       block a user
  resolve     resolve the viewer's signal map

Environment:
  CIRCLES_STORE_PATH     bbolt file (default circles.db)
  CIRCLES_REDIS_URL      use Redis instead of the local file
  CIRCLES_POSTGRES_DSN   use Postgres instead of the local file
  CIRCLES_KAFKA_BROKERS  comma-separated brokers for the audit trail
  CIRCLES_MASTER_KEY     master key for invite envelopes (base64 or raw)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]
	if command == "help" || command == "-h" || command == "--help" {
		fmt.Print(usage)
		return
	}
	if err := run(command, os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(command string, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	core, cleanup, err := buildCore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	switch command {
	case "init":
		return runInit(ctx, core, args)
	case "status":
		return runStatus(ctx, core, args)
	case "set-signal":
		return runSetSignal(ctx, core, args)
	case "invite":
		return runInvite(ctx, core, args)
	case "accept":
		return runAccept(ctx, core, args)
	case "revoke":
		return runRevoke(ctx, core, args)
	case "block":
		return runBlock(ctx, core, args)
	case "resolve":
		return runResolve(ctx, core, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

// buildCore opens the configured backend and assembles the facade. The
// returned cleanup closes everything in reverse order.
func buildCore(ctx context.Context, cfg config.Config, log *slog.Logger) (*circles.Core, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	var store kv.Store
	switch {
	case cfg.RedisURL != "":
		rdb, err := redis.Dial(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		cleanups = append(cleanups, func() { _ = rdb.Close() })
		store = rdb
	case cfg.PostgresDSN != "":
		pg, err := postgres.Dial(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		cleanups = append(cleanups, pg.Close)
		if err := pg.EnsureSchema(ctx); err != nil {
			cleanup()
			return nil, nil, err
		}
		store = pg
	default:
		db, err := bolt.Open(cfg.StorePath)
		if err != nil {
			return nil, nil, err
		}
		cleanups = append(cleanups, func() { _ = db.Close() })
		store = db
	}

	opts := []circles.Option{
		circles.WithStore(store),
		circles.WithLogger(log),
	}
	if key := decodeMasterKey(cfg.MasterKey); len(key) > 0 {
		opts = append(opts, circles.WithMasterKey(key))
	}

	if len(cfg.KafkaBrokers) > 0 {
		sink, err := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic, audit.WithKafkaLogger(log))
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cleanups = append(cleanups, func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := sink.Close(flushCtx); err != nil {
				log.Warn("audit sink close failed", "error", err)
			}
		})
		opts = append(opts, circles.WithAuditPublisher(sink))
	}

	core, err := circles.New(opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return core, cleanup, nil
}

// decodeMasterKey accepts base64 or raw key material.
func decodeMasterKey(raw string) []byte {
	if raw == "" {
		return nil
	}
	if key, err := base64.StdEncoding.DecodeString(raw); err == nil {
		return key
	}
	return []byte(raw)
}

func runInit(ctx context.Context, core *circles.Core, args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	hint := fs.String("hint", "", "display hint shown to connections")
	if err := fs.Parse(args); err != nil {
		return err
	}

	id, err := core.CreateIdentity(ctx, *hint)
	if err != nil {
		return err
	}
	fmt.Printf("created identity %s\n", id.ID)
	return nil
}

func runStatus(ctx context.Context, core *circles.Core, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	user := fs.String("user", "", "acting user id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	userID, err := domain.ParseUserID(*user)
	if err != nil {
		return err
	}

	id, err := core.Identity(ctx, userID)
	if err != nil {
		return err
	}
	conns, err := core.Connections(ctx, userID)
	if err != nil {
		return err
	}

	if id.DisplayHint != "" {
		fmt.Printf("identity %s (%s)\n", id.ID, id.DisplayHint)
	} else {
		fmt.Printf("identity %s\n", id.ID)
	}
	if len(conns) == 0 {
		fmt.Println("no connections")
		return nil
	}
	for _, conn := range conns {
		line := fmt.Sprintf("  %s  %-7s  %s", conn.ConnectionID, conn.Status, conn.RemoteUserID)
		if conn.RemoteDisplayHint != "" {
			line += "  (" + conn.RemoteDisplayHint + ")"
		}
		fmt.Println(line)
	}
	return nil
}

func runSetSignal(ctx context.Context, core *circles.Core, args []string) error {
	fs := flag.NewFlagSet("set-signal", flag.ExitOnError)
	user := fs.String("user", "", "acting user id")
	colorFlag := fs.String("color", "", "signal color: cyan, amber, red, unknown")
	ttl := fs.Duration("ttl", 0, "signal lifetime, e.g. 2h (default 1h)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	userID, err := domain.ParseUserID(*user)
	if err != nil {
		return err
	}
	color, err := domain.ParseColor(*colorFlag)
	if err != nil {
		return err
	}

	sig, err := core.SetSignal(ctx, userID, color, *ttl)
	if err != nil {
		return err
	}
	fmt.Printf("signal %s until %s\n", sig.Color, sig.TTLExpiresAt.Format(time.RFC3339))
	return nil
}

func runInvite(ctx context.Context, core *circles.Core, args []string) error {
	fs := flag.NewFlagSet("invite", flag.ExitOnError)
	user := fs.String("user", "", "acting user id")
	target := fs.String("target", "", "optional display hint or user id for the invitee")
	if err := fs.Parse(args); err != nil {
		return err
	}
	userID, err := domain.ParseUserID(*user)
	if err != nil {
		return err
	}

	created, err := core.CreateInvite(ctx, userID, *target)
	if err != nil {
		return err
	}
	fmt.Printf("token:     %s\n", created.Invite.Token)
	fmt.Printf("shareable: %s\n", created.Shareable)
	fmt.Printf("expires:   %s\n", created.Invite.ExpiresAt.Format(time.RFC3339))
	return nil
}

func runAccept(ctx context.Context, core *circles.Core, args []string) error {
	fs := flag.NewFlagSet("accept", flag.ExitOnError)
	user := fs.String("user", "", "acting user id")
	rawToken := fs.String("token", "", "raw invite token")
	shareable := fs.String("shareable", "", "shareable invite envelope")
	if err := fs.Parse(args); err != nil {
		return err
	}
	userID, err := domain.ParseUserID(*user)
	if err != nil {
		return err
	}

	var tok domain.InviteToken
	switch {
	case *shareable != "":
		tok, err = core.DecodeShareable(*shareable)
	case *rawToken != "":
		tok, err = domain.ParseInviteToken(*rawToken)
	default:
		return fmt.Errorf("either -token or -shareable is required")
	}
	if err != nil {
		return err
	}

	summary, err := core.AcceptInvite(ctx, tok, userID)
	if err != nil {
		return err
	}
	fmt.Printf("connected to %s (connection %s)\n", summary.RemoteUserID, summary.ConnectionID)
	return nil
}

func runRevoke(ctx context.Context, core *circles.Core, args []string) error {
	fs := flag.NewFlagSet("revoke", flag.ExitOnError)
	user := fs.String("user", "", "acting user id")
	conn := fs.String("connection", "", "connection id to revoke")
	if err := fs.Parse(args); err != nil {
		return err
	}
	userID, err := domain.ParseUserID(*user)
	if err != nil {
		return err
	}
	connID, err := domain.ParseConnectionID(*conn)
	if err != nil {
		return err
	}

	summary, err := core.RevokeConnection(ctx, userID, connID)
	if err != nil {
		return err
	}
	fmt.Printf("connection %s is %s\n", summary.ConnectionID, summary.Status)
	return nil
}

func runBlock(ctx context.Context, core *circles.Core, args []string) error {
	fs := flag.NewFlagSet("block", flag.ExitOnError)
	user := fs.String("user", "", "acting user id")
	target := fs.String("target", "", "user id to block")
	if err := fs.Parse(args); err != nil {
		return err
	}
	userID, err := domain.ParseUserID(*user)
	if err != nil {
		return err
	}
	targetID, err := domain.ParseUserID(*target)
	if err != nil {
		return err
	}

	if err := core.BlockUser(ctx, userID, targetID); err != nil {
		return err
	}
	fmt.Printf("blocked %s\n", targetID)
	return nil
}

func runResolve(ctx context.Context, core *circles.Core, args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	user := fs.String("user", "", "acting user id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	userID, err := domain.ParseUserID(*user)
	if err != nil {
		return err
	}

	entries, err := core.ResolveSignalMap(ctx, userID)
	if err != nil {
		return err
	}

	out := make(map[string]domain.ViewerSignal, len(entries))
	for connID, entry := range entries {
		out[connID.String()] = entry
	}
	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
