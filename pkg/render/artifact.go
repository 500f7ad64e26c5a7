package render

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/forceweave/pkg/cache"
	"github.com/matzehuels/forceweave/pkg/errors"
)

// Format is an output format.
type Format string

// Output formats.
const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
	FormatPDF Format = "pdf"
	FormatDOT Format = "dot"
)

// Formats lists every output format.
var Formats = []Format{FormatSVG, FormatPNG, FormatPDF, FormatDOT}

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(Formats, f) {
		names := make([]string, len(Formats))
		for i, v := range Formats {
			names[i] = string(v)
		}
		return "", errors.New(errors.ErrCodeInvalidInput, "unknown format %q (valid: %s)", s, strings.Join(names, ", "))
	}
	return f, nil
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatSVG:
		return "image/svg+xml"
	case FormatPNG:
		return "image/png"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/vnd.graphviz"
	}
}

// Renderer turns DOT into artifacts, reusing cached output for DOT it has
// drawn before.
type Renderer struct {
	Cache  cache.Cache
	TTL    time.Duration
	Logger *log.Logger
}

// NewRenderer returns a renderer over c. A nil cache disables caching.
func NewRenderer(c cache.Cache, logger *log.Logger) *Renderer {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Renderer{Cache: c, TTL: cache.DefaultTTL, Logger: logger}
}

// Render draws dot in format f.
func (r *Renderer) Render(ctx context.Context, dot string, f Format) ([]byte, error) {
	var compute func(context.Context) ([]byte, error)
	switch f {
	case FormatDOT:
		return []byte(dot), nil
	case FormatSVG:
		compute = func(ctx context.Context) ([]byte, error) { return SVG(ctx, dot) }
	case FormatPNG:
		compute = func(ctx context.Context) ([]byte, error) { return PNG(ctx, dot) }
	case FormatPDF:
		compute = func(ctx context.Context) ([]byte, error) {
			svg, err := r.Render(ctx, dot, FormatSVG)
			if err != nil {
				return nil, err
			}
			return ToPDF(svg)
		}
	default:
		return nil, errors.New(errors.ErrCodeUnsupported, "format %q", f)
	}

	start := time.Now()
	out, hit, err := cache.Fetch(ctx, r.Cache, cache.ArtifactKey(dot, string(f)), r.TTL, compute)
	if err != nil {
		return nil, err
	}
	r.Logger.Debug("rendered", "format", f, "bytes", len(out), "cached", hit, "duration", time.Since(start))
	return out, nil
}
