package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultURL     = "https://agentfs-cloudflare-example.txdygl.workers.dev/chat"
	DefaultDelay   = time.Second
	DefaultTimeout = 2 * time.Minute
)

var (
	Dev       bool
	LogPath   string
	URL       string
	Delay     time.Duration
	Timeout   time.Duration
	CasesPath string
	Verbose   bool
	TUI       bool
	Serve     string
	Strict    bool
)

// Init loads .env (if any) and parses the process flags.
func Init() error {
	// a missing .env is fine
	_ = godotenv.Load()
	return Parse(flag.CommandLine, os.Args[1:])
}

// Parse registers every flag on fs and parses args. Environment variables
// provide the defaults so a flag always wins over CHATPROBE_*.
func Parse(fs *flag.FlagSet, args []string) error {
	delay, err := envDuration("CHATPROBE_DELAY", DefaultDelay)
	if err != nil {
		return err
	}
	timeout, err := envDuration("CHATPROBE_TIMEOUT", DefaultTimeout)
	if err != nil {
		return err
	}

	fs.BoolVar(&Dev, "dev", envBool("CHATPROBE_DEV", false), "Development mode")
	fs.StringVar(&LogPath, "logPath", os.Getenv("CHATPROBE_LOG_PATH"), "Path to save the log file")
	fs.StringVar(&URL, "url", envString("CHATPROBE_URL", DefaultURL), "Chat endpoint to POST messages to")
	fs.DurationVar(&Delay, "delay", delay, "Pause between test cases")
	fs.DurationVar(&Timeout, "timeout", timeout, "Per-request timeout, 0 disables it")
	fs.StringVar(&CasesPath, "cases", os.Getenv("CHATPROBE_CASES"), "YAML file with test messages (built-in list when empty)")
	fs.BoolVar(&Verbose, "verbose", envBool("CHATPROBE_VERBOSE", true), "Print request status and headers")
	fs.BoolVar(&TUI, "tui", false, "Show the run in a terminal UI")
	fs.StringVar(&Serve, "serve", "", "Run the local echo chat endpoint on this address instead of the tests")
	fs.BoolVar(&Strict, "strict", false, "Exit with status 2 when any test case fails")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if URL == "" {
		return fmt.Errorf("config: empty endpoint url")
	}
	if Delay < 0 || Timeout < 0 {
		return fmt.Errorf("config: delay and timeout must not be negative")
	}
	return nil
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
