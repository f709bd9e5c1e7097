// ABOUTME: Entry point for the folio document server
// ABOUTME: Dispatches the serve, init, adduser and health subcommands

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/2389/folio/internal/config"
	"github.com/2389/folio/internal/credentials"
	"github.com/2389/folio/internal/server"
)

// Version is set at build time.
var version = "dev"

const banner = `
   __       _ _
  / _| ___ | (_) ___
 | |_ / _ \| | |/ _ \
 |  _| (_) | | | (_) |
 |_|  \___/|_|_|\___/
`

func usage() {
	fmt.Println("Usage: folio <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                      Start the document server")
	fmt.Println("  init                       Create a new config file interactively")
	fmt.Println("  adduser --username NAME    Create an account (password from FOLIO_PASSWORD or stdin)")
	fmt.Println("  health                     Check server health")
	fmt.Println()
	fmt.Println("Every command accepts --config PATH (default: $FOLIO_CONFIG or ~/.config/folio/folio.yaml).")
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
		err = runServe(ctx, args)
	case "init":
		err = runInit(args, os.Stdin)
	case "adduser":
		err = runAddUser(ctx, args, os.Stdin)
	case "health":
		err = runHealth(ctx, args)
	case "help", "--help", "-h":
		usage()
	case "version", "--version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newFlagSet returns a flag set carrying the shared --config flag.
func newFlagSet(name string) (*pflag.FlagSet, *string) {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	configPath := flagSet.StringP("config", "c", "", "path to the config file")
	return flagSet, configPath
}

// parseArgs parses flags and rejects stray positional arguments.
func parseArgs(flagSet *pflag.FlagSet, args []string) error {
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}
	return nil
}

func runServe(ctx context.Context, args []string) error {
	flagSet, configFlag := newFlagSet("serve")
	if err := parseArgs(flagSet, args); err != nil {
		return err
	}
	configPath := config.ResolvePath(*configFlag)

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Documents: %s\n", cfg.Storage.DocumentsDir)
	green.Print("    ▶ ")
	fmt.Printf("Users:     %s\n", cfg.Storage.CredentialsPath)
	green.Print("    ▶ ")
	fmt.Printf("Sessions:  %s\n", cfg.Database.Path)

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	} else {
		green.Print("    ▶ ")
		fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	}

	if cfg.Auth.Mode == config.AuthModeDisabled {
		yellow.Println("    ! auth disabled: anyone can edit documents")
	}

	fmt.Println()

	logger.Info("starting folio",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return srv.Run(ctx)
}

func runHealth(ctx context.Context, args []string) error {
	flagSet, configFlag := newFlagSet("health")
	if err := parseArgs(flagSet, args); err != nil {
		return err
	}

	cfg, err := config.Load(config.ResolvePath(*configFlag))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := healthURL(cfg)
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

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

	fmt.Println("healthy")
	return nil
}

// healthURL points at the server's liveness probe.
func healthURL(cfg *config.Config) string {
	if cfg.Tailscale.Enabled {
		return fmt.Sprintf("https://%s/health", cfg.Tailscale.Hostname)
	}
	return fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
}

// runAddUser seeds an account in the credentials file.
func runAddUser(ctx context.Context, args []string, stdin io.Reader) error {
	flagSet, configFlag := newFlagSet("adduser")
	username := flagSet.StringP("username", "u", "", "account name to create")
	if err := parseArgs(flagSet, args); err != nil {
		return err
	}

	name := strings.TrimSpace(*username)
	if name == "" {
		return fmt.Errorf("--username flag is required")
	}

	cfg, err := config.Load(config.ResolvePath(*configFlag))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	password, err := readPassword(stdin)
	if err != nil {
		return err
	}

	creds := credentials.New(cfg.Storage.CredentialsPath, credentials.WithCost(cfg.Auth.BcryptCost))
	if err := creds.CreateAccount(ctx, name, password); err != nil {
		if errors.Is(err, credentials.ErrDuplicateUsername) {
			return fmt.Errorf("user %q already exists", name)
		}
		return fmt.Errorf("creating account: %w", err)
	}

	color.New(color.FgGreen).Printf("  ✓ Created user %s in %s\n", name, cfg.Storage.CredentialsPath)
	return nil
}

// readPassword takes the password from FOLIO_PASSWORD, or the first line of stdin.
func readPassword(stdin io.Reader) (string, error) {
	if pw := os.Getenv("FOLIO_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", fmt.Errorf("password must not be empty")
	}
	return pw, nil
}

// initAnswers holds everything runInit asks for.
type initAnswers struct {
	HTTPAddr        string
	DocumentsDir    string
	CredentialsPath string
	DatabasePath    string
	AuthMode        string
	ExtensionPolicy string
	SessionSecret   string
	LogLevel        string
	LogFormat       string
}

// getDataPath returns the folio data directory.
// Priority: XDG_DATA_HOME/folio > ~/.local/share/folio
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "folio")
}

// generateSecret returns a random base64 session secret.
func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func runInit(args []string, stdin io.Reader) error {
	flagSet, configFlag := newFlagSet("init")
	if err := parseArgs(flagSet, args); err != nil {
		return err
	}

	reader := bufio.NewReader(stdin)

	fmt.Println("folio configuration setup")
	fmt.Println("=========================")
	fmt.Println()

	dataPath := getDataPath()

	outputFile := prompt(reader, "Config file path", config.ResolvePath(*configFlag))

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if !isYes(overwrite) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	secret, err := generateSecret()
	if err != nil {
		return err
	}

	fmt.Println("\n--- Server ---")
	a := initAnswers{SessionSecret: secret}
	a.HTTPAddr = prompt(reader, "HTTP address", "localhost:4567")

	fmt.Println("\n--- Storage ---")
	a.DocumentsDir = prompt(reader, "Documents directory", filepath.Join(dataPath, "data"))
	a.CredentialsPath = prompt(reader, "Users file", filepath.Join(dataPath, "users.yml"))
	a.DatabasePath = prompt(reader, "Session database (:memory: to keep sessions in memory)", filepath.Join(dataPath, "sessions.db"))

	fmt.Println("\n--- Documents ---")
	a.AuthMode = prompt(reader, "Auth mode (required/disabled)", config.AuthModeRequired)
	a.ExtensionPolicy = prompt(reader, "Extension policy (strict/any)", config.ExtensionPolicyStrict)

	fmt.Println("\n--- Logging ---")
	a.LogLevel = prompt(reader, "Log level (debug/info/warn/error)", "info")
	a.LogFormat = prompt(reader, "Log format (text/json)", "text")

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// The file holds the session secret
	if err := os.WriteFile(outputFile, []byte(renderConfig(a)), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	if err := os.MkdirAll(a.DocumentsDir, 0755); err != nil {
		return fmt.Errorf("creating documents directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Documents directory: %s\n", a.DocumentsDir)
	fmt.Println("\nNext steps:")
	fmt.Println("  folio adduser --username admin   # create an account")
	fmt.Println("  folio serve                      # start the server")

	return nil
}

// renderConfig produces the YAML written by runInit.
func renderConfig(a initAnswers) string {
	var cfg strings.Builder
	cfg.WriteString("# folio configuration\n")
	cfg.WriteString("# Generated by folio init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: %q\n", a.HTTPAddr))
	cfg.WriteString("\n")

	cfg.WriteString("storage:\n")
	cfg.WriteString(fmt.Sprintf("  documents_dir: %q\n", a.DocumentsDir))
	cfg.WriteString(fmt.Sprintf("  credentials_path: %q\n", a.CredentialsPath))
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n", a.DatabasePath))
	cfg.WriteString("\n")

	cfg.WriteString("auth:\n")
	cfg.WriteString(fmt.Sprintf("  mode: %q\n", a.AuthMode))
	cfg.WriteString(fmt.Sprintf("  session_secret: %q\n", a.SessionSecret))
	cfg.WriteString("  session_ttl: \"168h\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("documents:\n")
	cfg.WriteString(fmt.Sprintf("  extension_policy: %q\n", a.ExtensionPolicy))
	cfg.WriteString("  sanitize_html: true\n")
	cfg.WriteString("  render_cache_entries: 256\n")
	cfg.WriteString("  render_cache_ttl: \"10m\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("rate_limit:\n")
	cfg.WriteString("  login_per_minute: 10\n")
	cfg.WriteString("  burst: 5\n")
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", a.LogLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", a.LogFormat))
	cfg.WriteString("\n")

	cfg.WriteString("metrics:\n")
	cfg.WriteString("  enabled: false\n")
	cfg.WriteString("  path: \"/metrics\"\n")

	return cfg.String()
}

func isYes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
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
