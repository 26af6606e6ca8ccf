package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"video-mosaic/internal/logging"
	"video-mosaic/internal/startup"

	"golang.org/x/term"
)

// errUsage marks errors already explained by the usage text.
var errUsage = errors.New("usage")

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	// Library logging stays quiet unless asked for; the CLI prints its own
	// progress.
	if os.Getenv("LOG_LEVEL") == "" && os.Getenv("DEBUG") == "" {
		logging.SetLevel(logging.LevelWarn)
	}

	// Create a context that cancels on interrupt signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, cancelling jobs...")
		cancel()
	}()

	env := cliEnv{
		stdout: os.Stdout,
		stderr: os.Stderr,
		live:   term.IsTerminal(int(os.Stdout.Fd())),
	}
	os.Exit(run(ctx, os.Args[1:], env))
}

// cliEnv carries the output streams so commands can be tested.
type cliEnv struct {
	stdout io.Writer
	stderr io.Writer
	// live enables the redrawn progress line.
	live bool
}

func run(ctx context.Context, args []string, env cliEnv) int {
	var err error
	switch args[0] {
	case "run":
		err = runMosaics(ctx, args[1:], env)
	case "layout":
		err = runLayout(args[1:], env)
	case "status":
		err = runStatus(ctx, args[1:], env)
	case "help", "-h", "--help":
		printUsage(env.stdout)
		return 0
	default:
		// Sanitize command input using allowlist to break taint chain
		fmt.Fprintf(env.stderr, "Unknown command: %s\n", sanitizeCommand(args[0]))
		printUsage(env.stderr)
		return 1
	}

	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(env.stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// sanitizeCommand returns a safe representation of a command string for display.
// It uses an allowlist approach, replacing any character that is not alphanumeric,
// a hyphen, or an underscore with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Video Mosaic")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: mosaic <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  run [flags] <paths...>  - Generate mosaics for video files and directories")
	fmt.Fprintln(w, "  layout [flags]          - Solve a layout without reading any video")
	fmt.Fprintln(w, "  status [flags]          - Show the mosaic index")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'mosaic <command> -h' for command flags.")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintf(w, "  %-14s - Optional YAML config file\n", startup.ConfigFileEnv)
	fmt.Fprintf(w, "  %-14s - Index directory (default: %s)\n", "DATABASE_DIR", defaultStateDir())
	fmt.Fprintf(w, "  %-14s - sqlite, pebble or none (default: sqlite)\n", "INDEX_BACKEND")
	fmt.Fprintf(w, "  %-14s - debug, info, warn or error (default: warn)\n", "LOG_LEVEL")
}

// defaultStateDir is where the CLI keeps its index when DATABASE_DIR is
// unset.
func defaultStateDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "video-mosaic")
	}
	return ".mosaic"
}

// cliDefaults adjusts the server defaults for interactive use: paths are
// relative to the working directory and metrics are off.
func cliDefaults() startup.Config {
	cfg := startup.DefaultConfig()
	cfg.MediaDir = "."
	cfg.OutputDir = "."
	cfg.DatabaseDir = defaultStateDir()
	cfg.MetricsEnabled = false
	return cfg
}
