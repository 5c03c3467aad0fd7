package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"matrimony-subscription/internal/config"
	pg "matrimony-subscription/internal/infra/db/postgres"
)

const usage = `usage: migrate [-config path] <command> [args]

commands: up, up-by-one, up-to V, down, down-to V, redo, reset, status, version`

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Store.Driver != config.StoreDriverPostgres {
		log.Fatalf("migrations only apply to the postgres driver, got %q", cfg.Store.Driver)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := pg.Migrate(ctx, cfg.Store.DatabaseURL, args[0], args[1:]...); err != nil {
		log.Fatalf("%v", err)
	}
}
