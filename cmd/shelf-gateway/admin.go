// ABOUTME: Offline administration subcommands that work directly on the gateway database
// ABOUTME: init writes a config file; user and token manage principals and MCP tokens

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"github.com/2389/shelf-gateway/internal/config"
	"github.com/2389/shelf-gateway/internal/store"
)

// openStore loads the config and opens its database.
func openStore() (*store.SQLiteStore, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("SHELF_DB_PATH"); envPath != "" {
		dbPath = envPath
	}
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return s, nil
}

// parsedArgs is a subcommand's arguments split into positionals and flags.
type parsedArgs struct {
	positional []string
	values     map[string]string
	switches   map[string]bool
}

// parseArgs supports "--flag value", "--flag=value" and bare boolean switches.
// valued lists the flags that take a value; anything else starting with "-"
// must be in switches or it is an error.
func parseArgs(args []string, valued, switches []string) (parsedArgs, error) {
	out := parsedArgs{values: map[string]string{}, switches: map[string]bool{}}
	isValued := func(f string) bool {
		for _, v := range valued {
			if v == f {
				return true
			}
		}
		return false
	}
	isSwitch := func(f string) bool {
		for _, s := range switches {
			if s == f {
				return true
			}
		}
		return false
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			out.positional = append(out.positional, arg)
			continue
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		switch {
		case isValued(name):
			if !hasValue {
				if i+1 >= len(args) {
					return out, fmt.Errorf("--%s requires a value", name)
				}
				value = args[i+1]
				i++
			}
			out.values[name] = value
		case isSwitch(name) && !hasValue:
			out.switches[name] = true
		default:
			return out, fmt.Errorf("unknown flag: %s", arg)
		}
	}
	return out, nil
}

func runUser(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: shelf-gateway user add|list|kindle")
	}
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	switch args[0] {
	case "add":
		return userAdd(ctx, s, args[1:])
	case "list":
		return userList(ctx, s)
	case "kindle":
		return userKindle(ctx, s, args[1:])
	default:
		return fmt.Errorf("unknown user command: %s", args[0])
	}
}

func userAdd(ctx context.Context, s store.UserStore, args []string) error {
	parsed, err := parseArgs(args, []string{"kindle"}, []string{"admin"})
	if err != nil {
		return err
	}
	if len(parsed.positional) != 1 {
		return errors.New("usage: shelf-gateway user add NAME [--kindle EMAIL] [--admin]")
	}

	user := &store.User{
		Username:    strings.TrimSpace(parsed.positional[0]),
		KindleEmail: parsed.values["kindle"],
		IsAdmin:     parsed.switches["admin"],
	}
	if err := s.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return fmt.Errorf("user %q already exists", user.Username)
		}
		return fmt.Errorf("creating user: %w", err)
	}

	color.New(color.FgGreen).Printf("  ✓ Created user %s (id %d)\n", user.Username, user.ID)
	return nil
}

func userList(ctx context.Context, s store.UserStore) error {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}
	if len(users) == 0 {
		fmt.Println("no users")
		return nil
	}

	fmt.Printf("%-6s %-20s %-32s %s\n", "ID", "USERNAME", "KINDLE", "ADMIN")
	for _, u := range users {
		fmt.Printf("%-6d %-20s %-32s %t\n", u.ID, u.Username, u.KindleEmail, u.IsAdmin)
	}
	return nil
}

func userKindle(ctx context.Context, s store.UserStore, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: shelf-gateway user kindle NAME EMAIL")
	}
	user, err := s.GetUserByUsername(ctx, args[0])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("user %q not found", args[0])
		}
		return err
	}
	if err := s.UpdateKindleEmail(ctx, user.ID, strings.TrimSpace(args[1])); err != nil {
		return fmt.Errorf("updating kindle email: %w", err)
	}
	color.New(color.FgGreen).Printf("  ✓ Kindle address for %s set to %s\n", user.Username, args[1])
	return nil
}

func runToken(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: shelf-gateway token create|list|revoke")
	}
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	switch args[0] {
	case "create":
		return tokenCreate(ctx, s, args[1:])
	case "list":
		return tokenList(ctx, s, args[1:])
	case "revoke":
		return tokenRevoke(ctx, s, args[1:])
	default:
		return fmt.Errorf("unknown token command: %s", args[0])
	}
}

// tokenAdmin is what the token subcommands need from the store.
type tokenAdmin interface {
	store.UserStore
	store.TokenStore
}

func tokenCreate(ctx context.Context, s tokenAdmin, args []string) error {
	parsed, err := parseArgs(args, []string{"name"}, nil)
	if err != nil {
		return err
	}
	if len(parsed.positional) != 1 {
		return errors.New("usage: shelf-gateway token create USERNAME [--name LABEL]")
	}

	user, err := s.GetUserByUsername(ctx, parsed.positional[0])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("user %q not found", parsed.positional[0])
		}
		return err
	}

	tok := &store.MCPToken{UserID: user.ID, Name: parsed.values["name"]}
	if err := s.CreateMCPToken(ctx, tok); err != nil {
		return fmt.Errorf("creating token: %w", err)
	}

	color.New(color.FgGreen).Printf("  ✓ Created token for %s\n", user.Username)
	fmt.Println()
	fmt.Printf("  %s\n", tok.Token)
	fmt.Println()
	color.New(color.FgYellow).Println("  Point your MCP client at:")
	fmt.Println("    POST http://<host>/mcp?token=" + tok.Token)
	return nil
}

func tokenList(ctx context.Context, s tokenAdmin, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: shelf-gateway token list USERNAME")
	}
	user, err := s.GetUserByUsername(ctx, args[0])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("user %q not found", args[0])
		}
		return err
	}

	tokens, err := s.ListMCPTokens(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("listing tokens: %w", err)
	}
	if len(tokens) == 0 {
		fmt.Println("no tokens")
		return nil
	}

	fmt.Printf("%-38s %-20s %s\n", "TOKEN", "NAME", "CREATED")
	for _, t := range tokens {
		fmt.Printf("%-38s %-20s %s\n", t.Token, t.Name, t.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func tokenRevoke(ctx context.Context, s tokenAdmin, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: shelf-gateway token revoke TOKEN")
	}
	if err := s.DeleteMCPToken(ctx, args[0]); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errors.New("token not found")
		}
		return fmt.Errorf("revoking token: %w", err)
	}
	color.New(color.FgGreen).Println("  ✓ Token revoked")
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("shelf-gateway configuration setup")
	fmt.Println("=================================")
	fmt.Println()

	defaultDataPath := getDataPath()

	outputFile := prompt(reader, "Config file path", getConfigPath())

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if !isYes(overwrite) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:5000")

	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", filepath.Join(defaultDataPath, "gateway.db"))

	fmt.Println("\n--- Libraries ---")
	calibreURL := prompt(reader, "Calibre content server URL", "http://localhost:8080")
	calibreUser := prompt(reader, "Calibre username (leave empty for none)", "")
	anxDir := prompt(reader, "Anx data directory", filepath.Join(defaultDataPath, "anx"))

	fmt.Println("\n--- Send to Kindle ---")
	smtpHost := prompt(reader, "SMTP host (leave empty to disable)", "")
	var smtpPort, smtpFrom, smtpUser string
	if smtpHost != "" {
		smtpPort = prompt(reader, "SMTP port", "587")
		smtpFrom = prompt(reader, "From address", "")
		smtpUser = prompt(reader, "SMTP username (leave empty for none)", "")
	}

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# shelf-gateway configuration\n")
	cfg.WriteString("# Generated by shelf-gateway init\n\n")

	cfg.WriteString("server:\n")
	fmt.Fprintf(&cfg, "  http_addr: %q\n\n", httpAddr)

	cfg.WriteString("database:\n")
	fmt.Fprintf(&cfg, "  path: %q\n\n", dbPath)

	cfg.WriteString("calibre:\n")
	fmt.Fprintf(&cfg, "  url: %q\n", calibreURL)
	if calibreUser != "" {
		fmt.Fprintf(&cfg, "  username: %q\n", calibreUser)
		cfg.WriteString("  password: \"${CALIBRE_PASSWORD}\"\n")
	}
	cfg.WriteString("\n")

	cfg.WriteString("anx:\n")
	fmt.Fprintf(&cfg, "  data_dir: %q\n\n", anxDir)

	if smtpHost != "" {
		cfg.WriteString("smtp:\n")
		fmt.Fprintf(&cfg, "  host: %q\n", smtpHost)
		fmt.Fprintf(&cfg, "  port: %s\n", smtpPort)
		fmt.Fprintf(&cfg, "  from: %q\n", smtpFrom)
		if smtpUser != "" {
			fmt.Fprintf(&cfg, "  username: %q\n", smtpUser)
			cfg.WriteString("  password: \"${SMTP_PASSWORD}\"\n")
		}
		cfg.WriteString("\n")
	}

	cfg.WriteString("logging:\n")
	fmt.Fprintf(&cfg, "  level: %q\n", logLevel)
	fmt.Fprintf(&cfg, "  format: %q\n", logFormat)

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nNext steps:")
	fmt.Println("  shelf-gateway user add <name>")
	fmt.Println("  shelf-gateway token create <name>")
	fmt.Println("  shelf-gateway serve")

	return nil
}

func isYes(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "yes" || s == "y"
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
