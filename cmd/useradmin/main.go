// Command useradmin creates or promotes an administrator account.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"pursekeep.org/internal/auth"
	"pursekeep.org/internal/config"
	"pursekeep.org/internal/obs"
	"pursekeep.org/internal/users"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("PURSEKEEP_CONFIG"), "path to YAML config")
		username   = flag.String("username", "admin", "admin username")
	)
	flag.Parse()

	logger := obs.NewLogger(obs.LogOptions{Level: "warn", Format: "text", Output: os.Stderr, Service: "pursekeep-useradmin"})
	obs.SetLogger(logger)

	if err := run(*configPath, *username, logger); err != nil {
		logger.Error("useradmin failed", "err", err)
		os.Exit(1)
	}
}

func run(configPath, username string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.DSN == "" {
		return errors.New("missing DSN: set database.dsn or PURSEKEEP_PG_DSN")
	}

	password, err := readPassword()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	hasher, err := auth.NewHasher(cfg.Auth.HashParams())
	if err != nil {
		return fmt.Errorf("hasher: %w", err)
	}
	db, err := users.OpenPostgres(cfg.Database.DSN, users.PoolConfig{MaxOpenConns: 2})
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	svc := users.NewService(users.NewPGRepository(db), hasher, logger)
	return bootstrapAdmin(ctx, svc, username, password, os.Stdout)
}

// bootstrapAdmin creates or promotes the admin and reports it on out.
func bootstrapAdmin(ctx context.Context, svc *users.Service, username, password string, out io.Writer) error {
	u, err := svc.Bootstrap(ctx, username, password)
	if err != nil {
		if ve, ok := users.IsValidation(err); ok {
			return fmt.Errorf("invalid %s: %s", ve.Field, ve.Message)
		}
		return fmt.Errorf("bootstrap: %w", err)
	}
	fmt.Fprintf(out, "admin %q ready (id %s)\n", u.Username, u.ID)
	return nil
}

// readPassword prompts twice on a terminal, or reads one line from a pipe.
func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	fmt.Fprint(os.Stderr, "Repeat password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
