package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/galdino/barber-booking/internal/config"
	"github.com/galdino/barber-booking/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	schemaPath := flag.String("schema", "migrations/schema.sql", "path to the schema file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	raw, err := os.ReadFile(*schemaPath)
	if err != nil {
		log.Fatalf("read schema: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	// The schema is plain DDL with no function bodies, so splitting on
	// semicolons is safe.
	statements := strings.Split(string(raw), ";")
	applied := 0
	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			log.Fatalf("apply statement %q: %v", firstLine(stmt), err)
		}
		applied++
	}

	log.Printf("migration complete, %d statements applied", applied)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
