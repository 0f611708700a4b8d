package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"novelforge/internal/bootstrap"
	"novelforge/internal/generation"
	"novelforge/internal/infra"
	"novelforge/internal/middleware"
)

const usage = `usage: novelctl <command> [flags]

commands:
  token    mint an access token for an owner
  show     print the progress of a novel
  drive    run a server-driven novel to completion in this process
  delete   remove a novel
  sweep    mark stale novels as failed
  migrate  create the database schema`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		exitWithError(errors.New(usage))
	}
	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "token":
		err = runToken(args)
	case "show", "drive", "delete", "sweep", "migrate":
		err = runWithPipeline(cmd, args)
	case "-h", "--help", "help":
		fmt.Println(usage)
		return
	default:
		err = fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
	if err != nil {
		exitWithError(err)
	}
}

func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	owner := fs.String("owner", "", "owner id placed in the sub claim")
	locale := fs.String("locale", "", "optional narrative language, e.g. id or en")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	_ = fs.Parse(args)

	if strings.TrimSpace(*owner) == "" {
		return errors.New("-owner is required")
	}
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	token, err := middleware.SignJWT(secret, middleware.TokenClaims{
		Sub:    strings.TrimSpace(*owner),
		Locale: *locale,
		Exp:    time.Now().Add(*ttl).Unix(),
	})
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func runWithPipeline(cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	id := fs.String("id", "", "novel id")
	owner := fs.String("owner", "", "owner id (required by delete)")
	_ = fs.Parse(args)

	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	logger := infra.NewLogger(cfg.AppEnv, "novelctl")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Build migrates the postgres schema and creates the sqlite file.
	deps, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	novelID := strings.TrimSpace(*id)
	needID := cmd == "show" || cmd == "drive" || cmd == "delete"
	if needID && novelID == "" {
		return errors.New("-id is required")
	}

	switch cmd {
	case "migrate":
		fmt.Printf("schema ready (%s)\n", cfg.StoreDriver)
	case "show":
		progress, err := deps.Reporter.Progress(ctx, novelID)
		if err != nil {
			return err
		}
		return printJSON(progress)
	case "drive":
		if err := deps.Orchestrator.Drive(ctx, novelID); err != nil {
			return fmt.Errorf("drive %s: %w", novelID, err)
		}
		progress, err := deps.Reporter.Progress(ctx, novelID)
		if err != nil {
			return err
		}
		return printJSON(progress)
	case "delete":
		if strings.TrimSpace(*owner) == "" {
			return errors.New("-owner is required")
		}
		if err := deps.Service.Delete(ctx, novelID, strings.TrimSpace(*owner)); err != nil {
			return err
		}
		fmt.Printf("novel %s deleted\n", novelID)
	case "sweep":
		count, err := generation.NewSweeper(deps.Store, cfg.StaleAfter, logger).Sweep(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%d stale novel(s) marked as failed\n", count)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
