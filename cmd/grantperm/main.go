// Package main provides a CLI tool for granting and revoking player
// permissions, such as the gates on restricted classes and groups.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/cory-johannsen/grimoire/internal/config"
	"github.com/cory-johannsen/grimoire/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	player := flag.String("player", "", "target player name (required)")
	perm := flag.String("perm", "", "permission to grant, e.g. grimoire.warlock (required)")
	revoke := flag.Bool("revoke", false, "revoke the permission instead of granting it")
	flag.Parse()

	if *player == "" || *perm == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("connecting to database: %v", err)
	}
	defer pool.Close()

	repo := postgres.NewPlayerRepository(pool.DB())

	p, err := repo.GetByName(ctx, *player)
	if err != nil {
		log.Fatalf("looking up player %q: %v", *player, err)
	}

	verb := "granted"
	if *revoke {
		verb = "revoked"
		err = repo.Revoke(ctx, p.ID, *perm)
	} else {
		err = repo.Grant(ctx, p.ID, *perm)
	}
	if err != nil {
		log.Fatalf("updating permission: %v", err)
	}

	perms, err := repo.Permissions(ctx, p.ID)
	if err != nil {
		log.Fatalf("listing permissions: %v", err)
	}

	elapsed := time.Since(start)
	fmt.Fprintf(os.Stdout, "%s %q for %s; now holds [%s] [%s]\n",
		verb, *perm, p.Name, strings.Join(perms, ", "), elapsed)
}
