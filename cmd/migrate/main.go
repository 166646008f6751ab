package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"

	"github.com/zapfesta/zapfesta/internal/config"
)

func main() {
	migrationsDir := flag.String("migrations", "db/migrations/postgres", "diretório com migrations .up.sql (postgres)")
	sqliteDir := flag.String("migrations-sqlite", "db/migrations/sqlite", "diretório com migrations .up.sql (sqlite)")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	ctx := context.Background()

	switch cfg.Storage.Driver {
	case "sqlite":
		if err := migrateSQLite(ctx, cfg.Storage.DataDir, *sqliteDir); err != nil {
			log.Fatalf("migrate sqlite: %v", err)
		}
	case "postgres":
		if err := migratePostgres(ctx, cfg.DB.DSN(), *migrationsDir); err != nil {
			log.Fatalf("migrate postgres: %v", err)
		}
	default:
		log.Fatalf("driver de storage desconhecido: %q", cfg.Storage.Driver)
	}

	log.Println("migrations aplicadas com sucesso")
}

func migrateSQLite(ctx context.Context, dataDir, dir string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("criando diretório de dados: %w", err)
	}

	dbPath := filepath.Join(dataDir, "zapfesta.db")
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_foreign_keys=on")
	if err != nil {
		return fmt.Errorf("abrindo sqlite: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`); err != nil {
		return fmt.Errorf("criando schema_migrations: %w", err)
	}

	files, err := listSQLFiles(dir)
	if err != nil {
		return err
	}

	for _, f := range files {
		version := strings.TrimSuffix(filepath.Base(f), ".up.sql")

		var exists int
		err := db.QueryRowContext(ctx, "SELECT COUNT(1) FROM schema_migrations WHERE version = ?", version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("verificando migration %s: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("lendo %s: %w", f, err)
		}

		if err := execSQLiteBatch(ctx, db, string(content)); err != nil {
			return fmt.Errorf("aplicando %s: %w", version, err)
		}

		if _, err := db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("registrando %s: %w", version, err)
		}
		log.Printf("aplicada: %s", version)
	}

	return nil
}

// execSQLiteBatch executa cada statement separadamente; o driver sqlite3
// não aceita múltiplos statements em um único Exec com parâmetros.
func execSQLiteBatch(ctx context.Context, db *sql.DB, script string) error {
	for _, stmt := range strings.Split(script, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func migratePostgres(ctx context.Context, dsn, dir string) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("conectando ao postgres: %w", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("criando schema_migrations: %w", err)
	}

	files, err := listSQLFiles(dir)
	if err != nil {
		return err
	}

	for _, f := range files {
		version := strings.TrimSuffix(filepath.Base(f), ".up.sql")

		var exists int
		if err := pool.QueryRow(ctx, "SELECT COUNT(1) FROM schema_migrations WHERE version = $1", version).Scan(&exists); err != nil {
			return fmt.Errorf("verificando migration %s: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("lendo %s: %w", f, err)
		}

		if _, err := pool.Exec(ctx, string(content)); err != nil {
			return fmt.Errorf("aplicando %s: %w", version, err)
		}

		if _, err := pool.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
			return fmt.Errorf("registrando %s: %w", version, err)
		}
		log.Printf("aplicada: %s", version)
	}

	return nil
}

func listSQLFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listando %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".up.sql") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
