package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"matrimony-subscription/internal/config"
	"matrimony-subscription/internal/domain/ports/adapter"
	"matrimony-subscription/internal/infra/db"
	"matrimony-subscription/internal/infra/logging"
	red "matrimony-subscription/internal/infra/redis"
	"matrimony-subscription/internal/usecase"
)

// seed mirrors the configured package catalog into the store.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	check := flag.Bool("check", false, "only report drift, write nothing")
	flag.Parse()

	// ---- Config ----
	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pkgs, err := cfg.Catalog()
	if err != nil {
		log.Fatalf("catalog: %v", err)
	}
	catalog, err := usecase.NewPackageCatalog(pkgs)
	if err != nil {
		log.Fatalf("catalog: %v", err)
	}

	stores, err := db.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer stores.Close()

	var locker adapter.Locker
	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rc.Close()
		locker = red.NewLocker(rc)
	}
	uc := usecase.NewCatalogUseCase(catalog, stores.Packages, locker, logger)

	drift, err := uc.Drift(ctx)
	if err != nil {
		log.Fatalf("drift: %v", err)
	}
	if len(drift) == 0 {
		fmt.Printf("%d packages in sync. No changes.\n", len(catalog.List()))
		return
	}
	for _, d := range drift {
		fmt.Printf("  - %s: %s\n", d.PackageID, d.Kind)
	}
	if *check {
		return
	}

	n, err := uc.Sync(ctx)
	if err != nil {
		log.Fatalf("sync: %v", err)
	}
	for _, p := range catalog.List() {
		fmt.Printf("seeded: %s (months=%d, weekly=%d, total=%d, price=%s %s)\n",
			p.ID, p.ValidityMonths, p.WeeklyContactCap, p.TotalContactCap, p.Price.StringFixed(2), p.Currency)
	}
	fmt.Printf("Seeding complete: %d packages written.\n", n)
}
