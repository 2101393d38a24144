// Package present maps lifecycle state to what the user sees.
package present

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Da-Coder-Jr/Vidiment/internal/lifecycle"
	"github.com/Da-Coder-Jr/Vidiment/internal/request"
)

// Headings shown above the caption.
const (
	HeadingStory     = "Generated Story"
	HeadingCommunity = "Video Script/Title"
)

// ErrUnknownFormat is returned by Render for unsupported output formats.
var ErrUnknownFormat = errors.New("present: unknown output format")

// Display is the renderable view of a lifecycle state.
type Display struct {
	Phase       lifecycle.Phase `json:"phase" yaml:"phase"`
	Busy        bool            `json:"busy" yaml:"busy"`
	ArtifactURL string          `json:"artifact_url,omitempty" yaml:"artifact_url,omitempty"`
	Heading     string          `json:"heading,omitempty" yaml:"heading,omitempty"`
	Caption     string          `json:"caption,omitempty" yaml:"caption,omitempty"`
	Error       string          `json:"error,omitempty" yaml:"error,omitempty"`
}

// Presenter builds Displays against a static-asset base URL.
type Presenter struct {
	staticBase string
}

// NewPresenter returns a Presenter resolving artifact filenames against staticBase.
func NewPresenter(staticBase string) *Presenter {
	if !strings.HasSuffix(staticBase, "/") {
		staticBase += "/"
	}
	return &Presenter{staticBase: staticBase}
}

// Present maps s to a Display. It performs no I/O.
func (p *Presenter) Present(s lifecycle.State) Display {
	d := Display{Phase: s.Phase}
	switch s.Phase {
	case lifecycle.PhaseSubmitting:
		d.Busy = true
	case lifecycle.PhaseSucceeded:
		d.ArtifactURL = p.ArtifactURL(s.ArtifactPath)
		if s.Caption != "" {
			d.Caption = s.Caption
			d.Heading = heading(s.Pipeline)
		}
	case lifecycle.PhaseFailed:
		d.Error = s.Message
	}
	return d
}

// ArtifactURL resolves the final path segment of artifactPath against the static base.
func (p *Presenter) ArtifactURL(artifactPath string) string {
	name := Filename(artifactPath)
	if name == "" {
		return ""
	}
	return p.staticBase + url.PathEscape(name)
}

// Filename returns the final segment of a server path, accepting either separator.
func Filename(artifactPath string) string {
	trimmed := strings.TrimRight(artifactPath, `/\`)
	if i := strings.LastIndexAny(trimmed, `/\`); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

func heading(p request.Pipeline) string {
	if p == request.PipelineCommunity {
		return HeadingCommunity
	}
	return HeadingStory
}

// Render writes d to w as "text", "json" or "yaml".
func Render(w io.Writer, d Display, format string) error {
	switch strings.ToLower(format) {
	case "", "text":
		return renderText(w, d)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("present: encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func renderText(w io.Writer, d Display) error {
	var b strings.Builder
	switch {
	case d.Busy:
		b.WriteString("Generating video, please wait...\n")
	case d.Error != "":
		fmt.Fprintf(&b, "Error: %s\n", d.Error)
	case d.ArtifactURL != "":
		fmt.Fprintf(&b, "Generated Video: %s\n", d.ArtifactURL)
		if d.Caption != "" {
			fmt.Fprintf(&b, "\n%s\n%s\n", d.Heading, d.Caption)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
