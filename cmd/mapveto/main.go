package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rgadsdon/mapveto/internal/app"
	"github.com/rgadsdon/mapveto/internal/auth"
	"github.com/rgadsdon/mapveto/internal/config"
	"github.com/rgadsdon/mapveto/internal/logger"
)

// ANSI escape codes
const (
	reset  = "\033[0m"
	yellow = "\033[33m"
	red    = "\033[31m"
	green  = "\033[32m"
	cyan   = "\033[36m"
	bold   = "\033[1m"
)

var (
	version = "dev"
)

// printBanner displays the MapVeto logo
func printBanner() {
	logo := []string{
		`  __  __            __     __   _        `,
		` |  \/  | __ _ _ __ \ \   / /__| |_ ___  `,
		` | |\/| |/ _' | '_ \ \ \ / / _ \ __/ _ \ `,
		` | |  | | (_| | |_) | \ V /  __/ || (_) |`,
		` |_|  |_|\__,_| .__/   \_/ \___|\__\___/ `,
		`              |_|                        `,
	}
	fmt.Println()
	for _, line := range logo {
		fmt.Printf("  %s%s%s\n", cyan, line, reset)
	}
	fmt.Println()
}

// cycleLogLevel cycles through debug -> info -> warn -> error
func cycleLogLevel(appLog *logger.SlogLogger) {
	current := appLog.GetLevel()
	var next string

	switch current.String() {
	case "DEBUG":
		next = "info"
	case "INFO":
		next = "warn"
	case "WARN":
		next = "error"
	case "ERROR":
		next = "debug"
	default:
		next = "info"
	}

	appLog.SetLevel(logger.ParseLevel(next))
	fmt.Printf("%sLog level: %s%s%s\n", green, yellow, next, reset)
}

// printKeyboardHelp displays all available keyboard shortcuts
func printKeyboardHelp() {
	fmt.Printf("\n%s%s  Keyboard Shortcuts:%s\n", bold, green, reset)
	fmt.Printf("    %sa%s      - Open admin API in browser\n", cyan, reset)
	fmt.Printf("    %sh%s      - Toggle HTTP request logging\n", cyan, reset)
	fmt.Printf("    %sl%s      - Cycle log level (debug -> info -> warn -> error)\n", cyan, reset)
	fmt.Printf("    %sq%s      - Quit server\n", cyan, reset)
	fmt.Printf("    %s?%s      - Show this help\n\n", cyan, reset)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	adminPw := flag.String("adminpw", cfg.AdminPassword, "Admin password (auto-generated if not set)")
	logLevel := flag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	noKeyboard := flag.Bool("nokeyboard", false, "Disable keyboard shortcuts")
	showVersion := flag.Bool("version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `MapVeto - Esports Map Ban & Vote Server

Usage:
  mapveto [options]

Options:
  -port int      HTTP server port (default %d)
  -db string     SQLite database path (default %q)
  -adminpw str   Admin password (auto-generated if not set)
  -loglevel str  Log level: debug, info, warn, error (default %q)
  -nokeyboard    Disable keyboard shortcuts
  -version       Show version and exit
  -help          Show this help message

Every option can also be set via MAPVETO_* environment variables.

Examples:
  mapveto                            # Run on port %d with %s
  mapveto -port 8080                 # Run on port 8080
  mapveto -db /data/veto.db          # Use custom database path
  mapveto -adminpw secret123         # Use specific admin password
  mapveto -nokeyboard                # Disable keyboard shortcuts

`, cfg.Port, cfg.DBPath, cfg.LogLevel, cfg.Port, cfg.DBPath)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("mapveto %s\n", version)
		os.Exit(0)
	}

	printBanner()

	// Setup admin authentication
	password := *adminPw
	if password == "" {
		password = auth.GeneratePassword()
	}
	adminAuth := auth.New(password)

	// Create logger with specified level
	appLog := logger.NewWithLevel(logger.ParseLevel(*logLevel))

	cfg.Port = *port
	cfg.DBPath = *dbPath

	a, err := app.New(appLog, cfg, adminAuth)
	if err != nil {
		log.Fatal("Failed to initialize application:", err)
	}
	defer a.Close()

	addr := fmt.Sprintf(":%d", cfg.Port)
	appLog.Info("Admin password", "password", password)

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.Run(addr)
	}()

	// Wait a moment for server to start
	time.Sleep(100 * time.Millisecond)

	// Get base URL for browser opening
	adminURL := fmt.Sprintf("http://localhost:%d/api/admin/stats", cfg.Port)

	// Print keyboard shortcuts and start listener (unless disabled)
	if !*noKeyboard {
		printKeyboardHelp()

		// Start keyboard listener in goroutine
		go listenForKeyboard(adminURL, appLog)
	} else {
		fmt.Printf("\n%sKeyboard shortcuts disabled (use -nokeyboard=false to enable)%s\n\n", yellow, reset)
	}

	// Wait for server error or signal
	if err := <-serverErr; err != nil {
		log.Fatal(err)
	}
}
