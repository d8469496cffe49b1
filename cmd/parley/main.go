// ABOUTME: Entry point for the parley relay server
// ABOUTME: Bridges chat platform messages to a chat completion service

package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/parley-chat/parley/internal/config"
	"github.com/parley-chat/parley/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                     _
  _ __   __ _ _ __ | | ___ _   _
 | '_ \ / _' | '__|| |/ _ \ | | |
 | |_) | (_| | |   | |  __/ |_| |
 | .__/ \__,_|_|   |_|\___|\__, |
 |_|                       |___/
`

// getConfigPath returns the path to the parley config file.
// Priority: PARLEY_CONFIG env var > XDG_CONFIG_HOME/parley/parley.yaml > ~/.config/parley/parley.yaml
func getConfigPath() string {
	if envPath := os.Getenv("PARLEY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "parley.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "parley", "parley.yaml")
}

// getDataPath returns the path to the parley data directory.
// Priority: XDG_DATA_HOME/parley > ~/.local/share/parley
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "parley")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: parley <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve   Start the relay server")
		fmt.Println("  init    Create a new config file interactively")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)

	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Model:    %s\n", cfg.LLM.Model)
	green.Print("    ▶ ")
	fmt.Printf("Storage:  %s\n", cfg.Storage.Dir)

	green.Print("    ▶ ")
	fmt.Printf("Search:   ")
	if cfg.Search.Enabled {
		cyan.Println("enabled")
	} else {
		gray.Println("disabled")
	}

	fmt.Println()

	logger.Info("starting parley",
		"config", configPath,
		"model", cfg.LLM.Model,
		"storage_dir", cfg.Storage.Dir,
	)

	// Create and run gateway
	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler writes human-oriented colorized log lines to stdout.
// Output shape: "15:04:05.000 LEVEL message key=value group.key=value".
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	prefix string // dotted group path applied to record attrs
}

var levelTags = map[slog.Level]string{
	slog.LevelDebug: color.MagentaString("DEBUG"),
	slog.LevelInfo:  color.GreenString(" INFO"),
	slog.LevelWarn:  color.YellowString(" WARN"),
	slog.LevelError: color.New(color.FgRed, color.Bold).Sprint("ERROR"),
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05.000")))
	buf.WriteByte(' ')
	if tag, ok := levelTags[r.Level]; ok {
		buf.WriteString(tag)
	} else {
		buf.WriteString(r.Level.String())
	}
	buf.WriteByte(' ')
	buf.WriteString(r.Message)

	// Attrs accumulated via With() carry their group path already.
	for _, a := range h.attrs {
		writeAttr(&buf, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&buf, h.prefix, a)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Print(buf.String())
	return err
}

// writeAttr renders one attribute, quoting values that contain spaces so
// lines stay machine-greppable.
func writeAttr(buf *strings.Builder, prefix string, a slog.Attr) {
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	val := a.Value.String()
	if strings.ContainsAny(val, " \t") {
		val = fmt.Sprintf("%q", val)
	}
	buf.WriteByte(' ')
	buf.WriteString(color.CyanString(key))
	buf.WriteString(color.HiBlackString("="))
	buf.WriteString(val)
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + "." + a.Key
		}
		merged = append(merged, a)
	}
	return &colorHandler{level: h.level, attrs: merged, prefix: h.prefix}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	prefix := name
	if h.prefix != "" {
		prefix = h.prefix + "." + name
	}
	return &colorHandler{level: h.level, attrs: h.attrs, prefix: prefix}
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("parley configuration setup")
	fmt.Println("==========================")
	fmt.Println()

	// Default paths
	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()

	// Output filename
	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	// Check if file exists
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	// Model service
	fmt.Println("\n--- Model Configuration ---")
	baseURL := prompt(reader, "Chat completion base URL (empty for OpenAI)", "")
	model := prompt(reader, "Model name", "gpt-4o-mini")
	fmt.Println("The API key is read from the PARLEY_LLM_API_KEY environment variable.")

	// Search tool
	fmt.Println("\n--- Search Configuration ---")
	enableSearch := prompt(reader, "Enable web search tool?", "no")
	searchEnabled := strings.ToLower(enableSearch) == "yes" || strings.ToLower(enableSearch) == "y"

	var searchURL string
	if searchEnabled {
		searchURL = prompt(reader, "Search provider base URL", "https://api.exa.ai")
		fmt.Println("The search API key is read from the PARLEY_SEARCH_API_KEY environment variable.")
	}

	// Storage
	fmt.Println("\n--- Storage Configuration ---")
	storageDir := prompt(reader, "Database directory", defaultDataPath)

	// Logging
	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	// Generate config
	var cfg strings.Builder
	cfg.WriteString("# parley configuration\n")
	cfg.WriteString("# Generated by parley init\n\n")

	cfg.WriteString("llm:\n")
	if baseURL != "" {
		cfg.WriteString(fmt.Sprintf("  base_url: \"%s\"\n", baseURL))
	}
	cfg.WriteString("  api_key: \"${PARLEY_LLM_API_KEY}\"\n")
	cfg.WriteString(fmt.Sprintf("  model: \"%s\"\n", model))
	cfg.WriteString("  # system_prompt: \"You are a helpful assistant.\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("search:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", searchEnabled))
	if searchEnabled {
		cfg.WriteString(fmt.Sprintf("  base_url: \"%s\"\n", searchURL))
		cfg.WriteString("  api_key: \"${PARLEY_SEARCH_API_KEY}\"\n")
		cfg.WriteString("  num_results: 5\n")
		cfg.WriteString("  highlights: true\n")
	}
	cfg.WriteString("\n")

	cfg.WriteString("storage:\n")
	cfg.WriteString(fmt.Sprintf("  dir: \"%s\"\n", storageDir))
	cfg.WriteString("\n")

	cfg.WriteString("cache:\n")
	cfg.WriteString("  capacity: 32\n")
	cfg.WriteString("  ttl: \"30m\"\n")
	cfg.WriteString("  sweep_interval: \"5m\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	// Ensure config directory exists
	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Write config file
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	// Ensure data directory exists
	if err := os.MkdirAll(storageDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", storageDir)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  parley serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
