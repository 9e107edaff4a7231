// Command migrate runs the store lifecycle steps (backup, migrate, seed)
// without starting the API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"time"

	"clearbill.io/internal/store"
)

func main() {
	log.SetFlags(0)
	var (
		path      = flag.String("store", os.Getenv("STORE_PATH"), "Path to the store file")
		retention = flag.Int("retention", 5, "Backup copies to keep")
	)
	flag.Parse()

	if *path == "" {
		log.Fatal("missing store path: provide via -store or STORE_PATH")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|backup|seed]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	switch flag.Arg(0) {
	case "backup":
		_, err = store.BackupBefore(*path, *retention)
	case "up":
		if _, err = store.BackupBefore(*path, *retention); err != nil {
			break
		}
		db := mustOpen(*path)
		defer db.Close()
		err = store.Migrate(ctx, db)
	case "seed":
		db := mustOpen(*path)
		defer db.Close()
		if err = store.Migrate(ctx, db); err != nil {
			break
		}
		err = store.SeedDemo(ctx, db)
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
}

func mustOpen(path string) *sql.DB {
	db, err := store.Open(path)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	return db
}
