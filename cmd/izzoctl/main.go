package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/splax/izzocam/internal/domain"
	apiclient "github.com/splax/izzocam/pkg/api/client"
	"github.com/splax/izzocam/pkg/crypto"
)

type cliConfig struct {
	APIBaseURL     string `json:"api_base_url"`
	UserID         string `json:"user_id,omitempty"`
	SchedulerToken string `json:"scheduler_token,omitempty"`
	AdminToken     string `json:"admin_token,omitempty"`
}

var buildVersion = "dev"

const requestTimeout = 45 * time.Second

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "configure":
		err = commandConfigure(args)
	case "latest":
		err = commandLatest(args)
	case "hourly":
		err = commandHourly(args)
	case "request":
		err = commandRequest(args)
	case "generate":
		err = commandGenerate(args)
	case "recap":
		err = commandRecap(args)
	case "costs":
		err = commandCosts(args)
	case "usage":
		err = commandUsage(args)
	case "errors":
		err = commandErrors(args)
	case "ratelimit":
		err = commandRateLimit(args)
	case "config":
		err = commandConfig(args)
	case "hash-token":
		err = commandHashToken(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func commandConfigure(args []string) error {
	fs := flag.NewFlagSet("configure", flag.ExitOnError)
	apiBase := fs.String("api", "", "API base URL (default http://localhost:4000)")
	user := fs.String("user", "", "User id sent as X-User-ID")
	promptScheduler := fs.Bool("scheduler-token", false, "Prompt for the scheduler token")
	promptAdmin := fs.Bool("admin-token", false, "Prompt for the admin token")
	fs.Parse(args)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if strings.TrimSpace(*apiBase) != "" {
		cfg.APIBaseURL = strings.TrimSpace(*apiBase)
	}
	if strings.TrimSpace(*user) != "" {
		cfg.UserID = strings.TrimSpace(*user)
	}
	if *promptScheduler {
		if cfg.SchedulerToken, err = readSecret("Scheduler token: "); err != nil {
			return err
		}
	}
	if *promptAdmin {
		if cfg.AdminToken, err = readSecret("Admin token: "); err != nil {
			return err
		}
	}
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Println("configuration saved")
	return nil
}

func commandLatest(args []string) error {
	fs := flag.NewFlagSet("latest", flag.ExitOnError)
	limit := fs.Int("limit", 20, "Number of entries (max 100)")
	fs.Parse(args)

	client, _, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	entries, err := client.Latest(ctx, *limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no commentary yet")
		return nil
	}
	for _, entry := range entries {
		printEntry(entry)
	}
	return nil
}

func commandHourly(args []string) error {
	fs := flag.NewFlagSet("hourly", flag.ExitOnError)
	fs.Parse(args)
	client, _, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	entry, err := client.LatestHourly(ctx)
	if err != nil {
		return err
	}
	printEntry(entry)
	return nil
}

func commandRequest(args []string) error {
	fs := flag.NewFlagSet("request", flag.ExitOnError)
	user := fs.String("user", "", "User id override")
	fs.Parse(args)

	client, cfg, err := newClient()
	if err != nil {
		return err
	}
	if strings.TrimSpace(*user) != "" {
		if client, err = apiclient.New(cfg.APIBaseURL, apiclient.WithUserID(*user)); err != nil {
			return err
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	entry, err := client.Request(ctx)
	if err != nil {
		return err
	}
	printEntry(entry)
	return nil
}

func commandGenerate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	mode := fs.String("mode", "hourly", "hourly or adhoc")
	sinceRaw := fs.String("since", "", "RFC3339 start of the window (adhoc only)")
	fs.Parse(args)

	parsed, ok := domain.ParseMode(*mode)
	if !ok {
		return fmt.Errorf("unknown mode %q", *mode)
	}
	var since *time.Time
	if strings.TrimSpace(*sinceRaw) != "" {
		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(*sinceRaw))
		if err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
		since = &ts
	}
	client, cfg, err := newClient()
	if err != nil {
		return err
	}
	token, err := requireToken(cfg.SchedulerToken, "scheduler")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	entry, err := client.Generate(ctx, token, parsed, since)
	if err != nil {
		return err
	}
	printEntry(entry)
	return nil
}

func commandRecap(args []string) error {
	fs := flag.NewFlagSet("recap", flag.ExitOnError)
	fs.Parse(args)
	client, cfg, err := newClient()
	if err != nil {
		return err
	}
	token, err := requireToken(cfg.SchedulerToken, "scheduler")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	result, err := client.Recap(ctx, token)
	if err != nil {
		return err
	}
	if result.Entry == nil {
		fmt.Printf("recap skipped: %s (snapshots=%d)\n", result.Decision.Reason, result.Decision.SnapshotCount)
		return nil
	}
	printEntry(*result.Entry)
	return nil
}

func commandCosts(args []string) error {
	fs := flag.NewFlagSet("costs", flag.ExitOnError)
	fs.Parse(args)
	client, cfg, err := newClient()
	if err != nil {
		return err
	}
	token, err := requireToken(cfg.SchedulerToken, "scheduler")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	check, err := client.CheckCosts(ctx, token)
	if err != nil {
		return err
	}
	fmt.Printf("daily  $%.4f (threshold $%.2f)\n", check.DailyCost, check.DailyThreshold)
	fmt.Printf("hourly $%.4f (threshold $%.2f)\n", check.HourlyCost, check.HourlyThreshold)
	for _, alert := range check.Alerts {
		fmt.Printf("ALERT [%s] %s\n", alert.Severity, alert.Error)
	}
	return nil
}

func commandUsage(args []string) error {
	fs := flag.NewFlagSet("usage", flag.ExitOnError)
	window := fs.String("window", "24h", "Trailing window, e.g. 1h, 24h, 7d")
	fs.Parse(args)
	client, cfg, err := newClient()
	if err != nil {
		return err
	}
	token, err := requireToken(cfg.AdminToken, "admin")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	resp, err := client.Usage(ctx, token, *window)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func commandErrors(args []string) error {
	fs := flag.NewFlagSet("errors", flag.ExitOnError)
	window := fs.String("window", "24h", "Trailing window, e.g. 1h, 24h, 7d")
	fs.Parse(args)
	client, cfg, err := newClient()
	if err != nil {
		return err
	}
	token, err := requireToken(cfg.AdminToken, "admin")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	resp, err := client.Errors(ctx, token, *window)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func commandRateLimit(args []string) error {
	fs := flag.NewFlagSet("ratelimit", flag.ExitOnError)
	identity := fs.String("identity", "", "Identity key, e.g. user:abc or ip:1.2.3.4")
	fs.Parse(args)
	if strings.TrimSpace(*identity) == "" {
		return errors.New("--identity is required")
	}
	client, cfg, err := newClient()
	if err != nil {
		return err
	}
	token, err := requireToken(cfg.AdminToken, "admin")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	resp, err := client.RateLimit(ctx, token, *identity)
	if err != nil {
		return err
	}
	for _, u := range resp.Limiters {
		fmt.Printf("%-20s %d/%d remaining=%d\n", u.Limiter, u.Count, u.Limit, u.Remaining)
	}
	return nil
}

func commandConfig(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: izzoctl config get|set")
	}
	client, cfg, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	switch args[0] {
	case "get":
		resp, err := client.Config(ctx)
		if err != nil {
			return err
		}
		return printJSON(resp)
	case "set":
		fs := flag.NewFlagSet("config set", flag.ExitOnError)
		name := fs.String("dog", "", "Subject name")
		location := fs.String("location", "", "Location name")
		tone := fs.String("tone", "", "playful, calm or formal")
		comedic := fs.String("comedic", "", "none, light or medium")
		fs.Parse(args[1:])
		token, err := requireToken(cfg.AdminToken, "admin")
		if err != nil {
			return err
		}
		updated, err := client.UpdateConfig(ctx, token, domain.CommentaryConfig{
			SubjectName:  *name,
			LocationName: *location,
			Tone:         *tone,
			ComedicLevel: *comedic,
		})
		if err != nil {
			return err
		}
		return printJSON(updated)
	default:
		return fmt.Errorf("unknown config subcommand %q", args[0])
	}
}

// commandHashToken prints the bcrypt hash to put in SCHEDULER_TOKEN_HASH or
// ADMIN_TOKEN_HASH.
func commandHashToken(args []string) error {
	fs := flag.NewFlagSet("hash-token", flag.ExitOnError)
	fs.Parse(args)
	secret, err := readSecret("Token: ")
	if err != nil {
		return err
	}
	if secret == "" {
		return errors.New("token cannot be empty")
	}
	hash, err := crypto.HashToken(secret)
	if err != nil {
		return err
	}
	fmt.Println(string(hash))
	return nil
}

func newClient() (*apiclient.Client, cliConfig, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cliConfig{}, err
	}
	client, err := apiclient.New(cfg.APIBaseURL, apiclient.WithUserID(cfg.UserID))
	if err != nil {
		return nil, cliConfig{}, err
	}
	return client, cfg, nil
}

func requireToken(token, role string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("no %s token configured; run 'izzoctl configure --%s-token'", role, role)
	}
	return token, nil
}

func readSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Print("\n")
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return strings.TrimSpace(string(bytes)), nil
}

func printEntry(entry domain.CommentaryEntry) {
	fmt.Printf("[%s] %s  %s\n", entry.Mode, entry.CreatedAt.Local().Format(time.DateTime), entry.Summary.Title)
	if entry.Summary.Body != "" {
		fmt.Printf("  %s\n", entry.Summary.Body)
	}
	for _, bullet := range entry.Summary.BulletPoints {
		fmt.Printf("  - %s\n", bullet)
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func loadConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{APIBaseURL: "http://localhost:4000"}, nil
		}
		return cliConfig{}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "http://localhost:4000"
	}
	return cfg, nil
}

func saveConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func configPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "izzocam", "config.json"), nil
}

func printUsage() {
	fmt.Printf("izzoctl %s\n\n", buildVersion)
	fmt.Print(`Usage:
	izzoctl configure [--api http://localhost:4000] [--user <id>] [--scheduler-token] [--admin-token]
	izzoctl latest [--limit N]
	izzoctl hourly
	izzoctl request [--user <id>]
	izzoctl generate [--mode hourly|adhoc] [--since 2025-06-01T10:00:00Z]
	izzoctl recap
	izzoctl costs
	izzoctl usage [--window 24h]
	izzoctl errors [--window 24h]
	izzoctl ratelimit --identity user:<id>
	izzoctl config get
	izzoctl config set [--dog name] [--location name] [--tone playful|calm|formal] [--comedic none|light|medium]
	izzoctl hash-token
	izzoctl version
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
