// Command migration applies the events and live_scraped_links schema with
// golang-migrate.
package main

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"github.com/riskibarqy/live-links/internal/platform/logging"
)

var log = logging.New(logging.LevelInfo, logging.FormatConsole).Named("migration")

var migrationDirs = []string{"./db/migrations", "/app/db/migrations"}

// migrator is the part of *migrate.Migrate the commands drive.
type migrator interface {
	Up() error
	Steps(n int) error
	Migrate(version uint) error
	Force(version int) error
	Version() (uint, bool, error)
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(2)
	}
	_ = godotenv.Load()
	defer func() { _ = log.Sync() }()

	dbURL := strings.TrimSpace(os.Getenv("DB_URL"))
	if dbURL == "" {
		fatal("DB_URL is required")
	}
	dbURL = withMigrationsTable(dbURL, os.Getenv("MIGRATIONS_TABLE"))

	dir, err := findMigrationsDir(os.Getenv("MIGRATIONS_DIR"))
	if err != nil {
		fatal("locate migrations", "error", err)
	}
	sourceURL := "file://" + filepath.ToSlash(dir)

	m, err := migrate.New(sourceURL, dbURL)
	if err != nil {
		fatal("open migrator", "source", sourceURL, "error", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if err := errors.Join(srcErr, dbErr); err != nil {
			log.Warn("close migrator", "error", err)
		}
	}()

	if err := runCommand(m, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			printUsage(os.Stderr)
			os.Exit(2)
		}
		fatal("migration failed", "command", os.Args[1], "error", err)
	}
}

var errUsage = errors.New("usage")

// runCommand executes one CLI command. ErrNoChange is not an error.
func runCommand(m migrator, command string, args []string, out io.Writer) error {
	var err error
	switch strings.ToLower(strings.TrimSpace(command)) {
	case "up":
		err = m.Up()
	case "down":
		steps, parseErr := parseSteps(args)
		if parseErr != nil {
			return parseErr
		}
		err = m.Steps(-steps)
	case "goto", "migrate":
		if len(args) == 0 {
			return fmt.Errorf("%s needs a target version", command)
		}
		target, parseErr := parseTarget(args[0])
		if parseErr != nil {
			return parseErr
		}
		err = m.Migrate(target)
	case "force":
		if len(args) == 0 {
			return errors.New("force needs a version")
		}
		version, parseErr := parseVersion(args[0])
		if parseErr != nil {
			return parseErr
		}
		err = m.Force(version)
	case "version":
		return printVersion(m, out)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("schema already current", "command", command)
		return nil
	}
	if err != nil {
		return err
	}
	log.Info("migration command done", "command", command, "args", strings.Join(args, " "))
	return nil
}

func printVersion(m migrator, out io.Writer) error {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		_, err = fmt.Fprintln(out, "version: none\ndirty: false")
		return err
	}
	if err != nil {
		return fmt.Errorf("read version: %w", err)
	}
	_, err = fmt.Fprintf(out, "version: %d\ndirty: %t\n", version, dirty)
	return err
}

func parseSteps(args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}
	steps, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return 0, fmt.Errorf("invalid down steps %q: %w", args[0], err)
	}
	if steps <= 0 {
		return 0, errors.New("down steps must be > 0")
	}
	return steps, nil
}

func parseVersion(raw string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", raw, err)
	}
	if value < 0 {
		return 0, errors.New("version must be >= 0")
	}
	return value, nil
}

func parseTarget(raw string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 0)
	if err != nil {
		return 0, fmt.Errorf("invalid target version %q: %w", raw, err)
	}
	return uint(value), nil
}

func fatal(msg string, args ...any) {
	log.Error(msg, args...)
	_ = log.Sync()
	os.Exit(1)
}

// findMigrationsDir prefers an explicit directory and otherwise looks in the
// places the image and a source checkout keep the .sql files.
func findMigrationsDir(explicit string) (string, error) {
	dirs := migrationDirs
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		dirs = []string{explicit}
	}
	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		matches, _ := filepath.Glob(filepath.Join(abs, "*.up.sql"))
		if len(matches) > 0 {
			return abs, nil
		}
	}
	return "", fmt.Errorf("no *.up.sql files in %s", strings.Join(dirs, ", "))
}

// withMigrationsTable points golang-migrate at a dedicated version table so
// the pipeline schema can share a database with other services.
func withMigrationsTable(raw, table string) string {
	table = strings.TrimSpace(table)
	if table == "" {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" {
		return raw
	}
	query := parsed.Query()
	if query.Get("x-migrations-table") != "" {
		return raw
	}
	query.Set("x-migrations-table", table)
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

func printUsage(w io.Writer) {
	name := filepath.Base(os.Args[0])
	fmt.Fprintf(w, "usage: %s <up|down [n]|goto <version>|force <version>|version>\n", name)
	fmt.Fprintf(w, "  MIGRATIONS_DIR overrides the search path %s\n", strings.Join(migrationDirs, ", "))
}
