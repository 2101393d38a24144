// Package main provides the vidiment command: a local server and one-shot
// story and community video generation against the generation service.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

const usage = `usage: vidiment <command> [flags]

commands:
  serve       run the local HTTP server
  story       generate a story video
  community   generate a video from a community (subreddit)

run "vidiment <command> -h" for command flags
`

// errFailed marks a generation that ended in the FAILED state. The
// message has already been rendered.
var errFailed = errors.New("generation failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	if err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if err := loadDotEnv(".env"); err != nil {
		return err
	}

	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errors.New("missing command")
	}

	switch args[0] {
	case "serve":
		return serve(ctx, args[1:], stderr)
	case "story", "community":
		return generate(ctx, args[0], args[1:], stdout, stderr)
	case "-h", "--help", "help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// loadDotEnv reads KEY=VALUE pairs from path into the environment.
// Variables already set win. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
