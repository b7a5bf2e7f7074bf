package main

import (
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// Applies the SQL files in migrations/ in lexical order. All statements are
// idempotent (IF NOT EXISTS), so re-running is safe.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[WARN] .env file not found, using system environment")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("[ERROR] DATABASE_URL is not set")
	}

	dir := os.Getenv("MIGRATIONS_DIR")
	if dir == "" {
		dir = "migrations"
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		log.Fatalf("[ERROR] failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("[ERROR] database unreachable: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		log.Fatalf("[ERROR] failed to list migrations: %v", err)
	}
	sort.Strings(files)

	for _, file := range files {
		contents, err := os.ReadFile(file)
		if err != nil {
			log.Fatalf("[ERROR] failed to read %s: %v", file, err)
		}
		if _, err := db.Exec(string(contents)); err != nil {
			log.Fatalf("[ERROR] migration %s failed: %v", file, err)
		}
		log.Printf("[INFO] applied %s", file)
	}

	log.Println("[INFO] migrations complete")
}
