// ABOUTME: Operator subcommands: account bootstrap, session tokens, chat log inspection, directory seeding
// ABOUTME: Each opens the configured databases directly; none require the server to be running

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/2389/missionlink-gateway/internal/auth"
	"github.com/2389/missionlink-gateway/internal/directory"
	"github.com/2389/missionlink-gateway/internal/gateway"
	"github.com/2389/missionlink-gateway/internal/store"
)

// bootstrapOptions are the account fields accepted by the bootstrap command.
type bootstrapOptions struct {
	Email    string
	Password string
	Nickname string
	Name     string
	Grade    string
	Disabled bool
}

func parseBootstrapArgs(args []string) (*bootstrapOptions, error) {
	fs := flag.NewFlagSet("bootstrap", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var opts bootstrapOptions
	fs.StringVar(&opts.Email, "email", "", "account email (required)")
	fs.StringVar(&opts.Password, "password", "", "login password (required)")
	fs.StringVar(&opts.Nickname, "nickname", "", "login nickname")
	fs.StringVar(&opts.Name, "name", "", "preferred display name")
	fs.StringVar(&opts.Grade, "grade", "", "grade or class")
	fs.BoolVar(&opts.Disabled, "no-ai", false, "create the account with the assistant disabled")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	opts.Email = strings.TrimSpace(opts.Email)
	opts.Name = strings.TrimSpace(opts.Name)
	if opts.Email == "" {
		return nil, fmt.Errorf("--email flag is required")
	}
	if opts.Password == "" {
		return nil, fmt.Errorf("--password flag is required")
	}
	if len(opts.Name) > 100 {
		return nil, fmt.Errorf("display name exceeds maximum length of 100 characters")
	}
	return &opts, nil
}

// runBootstrap creates an active member account that can log in immediately.
func runBootstrap(ctx context.Context, args []string) error {
	opts, err := parseBootstrapArgs(args)
	if err != nil {
		return err
	}

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	cyan.Printf("  Using config: %s\n", configPath)
	green.Printf("  ✓ Database: %s\n", cfg.Database.Path)

	hash, err := auth.HashPassword(opts.Password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	acct := &store.Account{
		ID:            uuid.New().String(),
		Email:         opts.Email,
		Nickname:      opts.Nickname,
		PreferredName: opts.Name,
		Grade:         opts.Grade,
		Status:        store.AccountStatusActive,
		AIEnabled:     !opts.Disabled,
		PasswordHash:  hash,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.CreateAccount(ctx, acct); err != nil {
		if errors.Is(err, store.ErrDuplicateAccount) {
			return fmt.Errorf("an account with email %q or nickname %q already exists", opts.Email, opts.Nickname)
		}
		return fmt.Errorf("creating account: %w", err)
	}

	id := auth.IdentityFromAccount(acct)
	green.Printf("  ✓ Created account: %s\n", id.DisplayName)

	fmt.Println()
	cyan.Println("  Account")
	cyan.Println("  -------")
	fmt.Printf("  ID:           %s\n", acct.ID)
	fmt.Printf("  Email:        %s\n", acct.Email)
	fmt.Printf("  Display Name: %s\n", id.DisplayName)
	fmt.Printf("  Grade:        %s\n", orDash(acct.Grade))
	fmt.Printf("  Status:       %s\n", acct.Status)
	fmt.Printf("  Assistant:    %t\n", acct.AIEnabled)
	fmt.Println()

	yellow.Println("  Next:")
	fmt.Printf("    missionlink-gateway token --account %s\n", acct.ID)
	fmt.Println()
	return nil
}

// runToken mints a session token for an existing account.
func runToken(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	accountID := fs.String("account", "", "account ID (required)")
	ttl := fs.Duration("ttl", 0, "token lifetime (defaults to auth.token_ttl)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *accountID == "" {
		return fmt.Errorf("--account flag is required")
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	acct, err := s.GetAccount(ctx, *accountID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("account %s not found", *accountID)
	}
	if err != nil {
		return fmt.Errorf("loading account: %w", err)
	}

	lifetime := cfg.Auth.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	token, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret)).Generate(acct.ID, lifetime)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	if acct.Status != store.AccountStatusActive || !acct.AIEnabled {
		color.New(color.FgYellow).Fprintf(os.Stderr, "warning: account status is %s, assistant enabled: %t\n", acct.Status, acct.AIEnabled)
	}
	fmt.Println(token)
	return nil
}

// runLogs prints the most recent chat logs, newest first.
func runLogs(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("logs", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	limit := fs.Int("limit", 10, "number of logs to print")
	userID := fs.String("user", "", "only logs for this account ID")
	status := fs.String("status", "", "only logs with this status (success, error, truncated)")
	full := fs.Bool("full", false, "print full query and response text")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	filter := store.ChatLogFilter{Limit: *limit}
	if *userID != "" {
		filter.UserID = userID
	}
	if *status != "" {
		st := store.ChatStatus(*status)
		filter.Status = &st
	}

	logs, err := s.ListChatLogs(ctx, filter)
	if err != nil {
		return fmt.Errorf("listing chat logs: %w", err)
	}

	return printChatLogs(os.Stdout, logs, *full)
}

// printChatLogs writes logs as an aligned table. Long text is clipped unless full is set.
func printChatLogs(w io.Writer, logs []store.ChatLog, full bool) error {
	if len(logs) == 0 {
		fmt.Fprintln(w, "No chat logs found.")
		return nil
	}

	width := 60
	if full {
		width = 0
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tUSER\tSTATUS\tTOOLS\tQUERY\tRESPONSE")
	for _, l := range logs {
		st := string(l.Status)
		switch l.Status {
		case store.ChatStatusSuccess:
			st = color.GreenString(st)
		case store.ChatStatusTruncated:
			st = color.YellowString(st)
		default:
			st = color.RedString(st)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			l.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			l.UserID,
			st,
			orDash(strings.Join(l.ToolsCalled, ",")),
			clip(l.Query, width),
			clip(l.Response, width),
		)
		if l.Error != "" {
			fmt.Fprintf(tw, "\t\t\t\t%s\t\n", color.RedString("error: "+clip(l.Error, width)))
		}
	}
	return tw.Flush()
}

// runSeed bulk-loads directory records from a YAML file into the configured backend.
func runSeed(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	file := fs.String("file", "", "YAML seed file (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("--file flag is required")
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	data, err := directory.LoadSeedFile(*file)
	if err != nil {
		return err
	}

	dir, closeDir, err := gateway.OpenDirectory(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("opening directory: %w", err)
	}
	defer closeDir()

	seeder, ok := dir.(directory.Seeder)
	if !ok {
		return fmt.Errorf("directory driver %q does not support seeding", cfg.Directory.Driver)
	}
	if err := seeder.Seed(ctx, data); err != nil {
		return fmt.Errorf("seeding directory: %w", err)
	}

	color.New(color.FgGreen).Printf("  ✓ Seeded %s directory: %d meals, %d students, %d schedule entries, %d events\n",
		cfg.Directory.Driver, len(data.Meals), len(data.Students), len(data.Schedules), len(data.Events))
	return nil
}

// clip shortens s to at most n runes on a single line. n <= 0 disables clipping.
func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
