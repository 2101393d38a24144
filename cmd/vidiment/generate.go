package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/Da-Coder-Jr/Vidiment/internal/bootstrap"
	"github.com/Da-Coder-Jr/Vidiment/internal/lifecycle"
	"github.com/Da-Coder-Jr/Vidiment/internal/media"
	"github.com/Da-Coder-Jr/Vidiment/internal/present"
	"github.com/Da-Coder-Jr/Vidiment/internal/request"
)

// generateOptions are the flags shared by the story and community commands.
type generateOptions struct {
	pipeline   request.Pipeline
	text       string
	youtubeURL string
	image      string
	narration  bool
	download   bool
	format     string
}

func parseGenerateFlags(command string, args []string, stderr io.Writer) (generateOptions, error) {
	opts := generateOptions{pipeline: request.Pipeline(command)}

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(stderr)
	if opts.pipeline == request.PipelineCommunity {
		fs.StringVar(&opts.text, "subreddit", "", "community name, e.g. AskReddit")
	} else {
		fs.StringVar(&opts.text, "prompt", "", "story prompt")
	}
	fs.StringVar(&opts.youtubeURL, "youtube-url", "", "background video URL (wins over -image)")
	fs.StringVar(&opts.image, "image", "", "background image path or s3://bucket/key")
	fs.BoolVar(&opts.narration, "narration", false, "generate narration")
	fs.BoolVar(&opts.download, "download", false, "download the artifact into DOWNLOAD_DIR")
	fs.StringVar(&opts.format, "format", "text", "output format: text, json or yaml")

	if err := fs.Parse(args); err != nil {
		return generateOptions{}, err
	}
	return opts, nil
}

func generate(ctx context.Context, command string, args []string, stdout, stderr io.Writer) error {
	opts, err := parseGenerateFlags(command, args, stderr)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	deps, err := bootstrap.NewDependencies(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}
	defer deps.Close()

	var image *request.Upload
	if opts.image != "" {
		image, err = media.LoadImage(ctx, deps.Storage, opts.image)
		if err != nil {
			return err
		}
	}

	if err := fillForm(deps.Controller, opts, image); err != nil {
		return err
	}

	state, err := submitAndWait(ctx, deps.Controller, opts.pipeline)
	if err != nil {
		return err
	}

	display := deps.Presenter.Present(state)
	if err := present.Render(stdout, display, opts.format); err != nil {
		return err
	}
	if state.Phase != lifecycle.PhaseSucceeded {
		return errFailed
	}

	if opts.download {
		saved, err := deps.Fetcher.Fetch(ctx, display.ArtifactURL)
		if saved.Path != "" {
			fmt.Fprintf(stdout, "Saved: %s\n", saved.Path)
		}
		if saved.ArchiveURL != "" {
			fmt.Fprintf(stdout, "Archived: %s\n", saved.ArchiveURL)
		}
		if err != nil {
			return fmt.Errorf("download artifact: %w", err)
		}
	}
	return nil
}

func fillForm(c *lifecycle.Controller, opts generateOptions, image *request.Upload) error {
	if opts.pipeline == request.PipelineCommunity {
		return c.UpdateCommunityForm(func(f *request.CommunityForm) {
			f.Community = opts.text
			f.YouTubeURL = opts.youtubeURL
			f.Image = image
			f.GenerateNarration = opts.narration
		})
	}
	return c.UpdateStoryForm(func(f *request.StoryForm) {
		f.Prompt = opts.text
		f.YouTubeURL = opts.youtubeURL
		f.Image = image
		f.GenerateNarration = opts.narration
	})
}

// submitAndWait submits the pipeline's form and blocks until the outcome.
// Validation failures come back as a FAILED state carrying the message, not as an error.
func submitAndWait(ctx context.Context, c *lifecycle.Controller, p request.Pipeline) (lifecycle.State, error) {
	ticket, err := c.Submit(ctx, p)
	if err != nil {
		if request.IsValidation(err) {
			return lifecycle.State{Phase: lifecycle.PhaseFailed, Pipeline: p, Message: err.Error()}, nil
		}
		return lifecycle.State{}, err
	}

	state, _, err := ticket.Wait(ctx)
	if err != nil {
		return lifecycle.State{}, fmt.Errorf("wait for generation: %w", err)
	}
	return state, nil
}
