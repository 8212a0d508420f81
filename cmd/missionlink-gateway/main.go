// ABOUTME: Entry point for missionlink-gateway, the member-facing assistant server
// ABOUTME: Dispatches serve, bootstrap, token, logs, seed, and health subcommands

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/missionlink-gateway/internal/config"
	"github.com/2389/missionlink-gateway/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
           _         _             _ _       _
 _ __ ___ (_)___ ___(_) ___  _ __ | (_)_ __ | | __
| '_ ' _ \| / __/ __| |/ _ \| '_ \| | | '_ \| |/ /
| | | | | | \__ \__ \ | (_) | | | | | | | | |   <
|_| |_| |_|_|___/___/_|\___/|_| |_|_|_|_| |_|_|\_\
`

// getConfigPath returns the path to the gateway config file.
// Priority: MISSIONLINK_CONFIG env var > XDG_CONFIG_HOME/missionlink/gateway.yaml > ~/.config/missionlink/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("MISSIONLINK_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "missionlink", "gateway.yaml")
}

func usage() {
	fmt.Println("Usage: missionlink-gateway <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                                   Start the gateway server")
	fmt.Println("  bootstrap --email E --password P ...    Create an active member account")
	fmt.Println("  token --account ID                      Mint a session token for an account")
	fmt.Println("  logs [--limit N] [--user ID]            Print recent chat logs")
	fmt.Println("  seed --file data.yaml                   Load directory data (meals, students, schedules, events)")
	fmt.Println("  health                                  Check gateway health")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "bootstrap":
		err = runBootstrap(ctx, args)
	case "token":
		err = runToken(ctx, args)
	case "logs":
		err = runLogs(ctx, args)
	case "seed":
		err = runSeed(ctx, args)
	case "health":
		err = runHealth(ctx)
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, string, error) {
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, configPath, fmt.Errorf("loading config: %w", err)
	}
	return cfg, configPath, nil
}

func runServe(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Directory: %s\n", cfg.Directory.Driver)
	green.Print("    ▶ ")
	fmt.Printf("Model:     %s ", cfg.Model.Model)
	gray.Printf("(step cap %d)\n", cfg.Model.StepCap)
	if cfg.Auth.InactivePolicy == config.InactivePolicyWarn {
		yellow.Print("    ! ")
		fmt.Println("Inactive accounts are admitted with a warning")
	}
	fmt.Println()

	logger.Info("starting missionlink-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"version", version,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

// setupLogger builds the process logger. Logs go to stderr so command output
// on stdout stays clean.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			level = slog.LevelInfo
		}
	}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(newColorHandler(os.Stderr, level))
}

// levelTags are the short colored level markers for terminal output.
var levelTags = map[slog.Level]string{
	slog.LevelDebug: color.MagentaString("DBG"),
	slog.LevelInfo:  color.CyanString("INF"),
	slog.LevelWarn:  color.YellowString("WRN"),
	slog.LevelError: color.New(color.FgRed, color.Bold).Sprint("ERR"),
}

// colorHandler writes one colored line per record. Handlers derived with
// WithAttrs/WithGroup share the writer lock.
type colorHandler struct {
	out    io.Writer
	mu     *sync.Mutex
	level  slog.Leveler
	prefix string // dotted group path, with trailing dot
	fields string // pre-rendered attrs from WithAttrs
}

func newColorHandler(out io.Writer, level slog.Leveler) *colorHandler {
	return &colorHandler{out: out, mu: &sync.Mutex{}, level: level}
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	var line strings.Builder

	line.WriteString(color.HiBlackString(r.Time.Format("15:04:05")))
	line.WriteByte(' ')
	tag, ok := levelTags[r.Level]
	if !ok {
		tag = r.Level.String()
	}
	line.WriteString(tag)
	line.WriteByte(' ')
	line.WriteString(r.Message)
	line.WriteString(h.fields)
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&line, h.prefix, a)
		return true
	})
	line.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, line.String())
	return err
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var fields strings.Builder
	fields.WriteString(h.fields)
	for _, a := range attrs {
		writeAttr(&fields, h.prefix, a)
	}
	next := *h
	next.fields = fields.String()
	return &next
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

// writeAttr renders " key=value", flattening groups and highlighting errors.
func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		inner := prefix
		if a.Key != "" {
			inner = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			writeAttr(b, inner, ga)
		}
		return
	}

	b.WriteString(color.HiBlackString(" " + prefix + a.Key + "="))
	if a.Key == "error" {
		b.WriteString(color.RedString(a.Value.String()))
		return
	}
	b.WriteString(a.Value.String())
}

func runHealth(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s/health/ready", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	color.New(color.FgGreen).Println("healthy")
	return nil
}
