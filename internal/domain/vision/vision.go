// Package vision defines the output contract of image analysis providers.
package vision

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/kailas-cloud/storefront/internal/domain/search/relevance"
)

// Analysis sources.
const (
	SourceVision   = "vision"
	SourceFilename = "filename"
)

// FilenameConfidence is reported for keywords derived from a file name.
const FilenameConfidence = 0.3

// Analyzer detects text and object labels in an image.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, contentType string) (Analysis, error)
}

// HealthChecker verifies analysis provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Analysis is the keyword list detected in an image, most relevant first.
type Analysis struct {
	Keywords   []string `json:"keywords"`
	Confidence float64  `json:"confidence"`
	Source     string   `json:"source"`
}

// Top returns up to n distinct, non-empty keywords preserving order.
func (a *Analysis) Top(n int) []string {
	out := make([]string, 0, n)
	seen := make(map[string]struct{}, len(a.Keywords))
	for _, kw := range a.Keywords {
		if len(out) == n {
			break
		}
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		key := strings.ToLower(kw)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, kw)
	}
	return out
}

// FromFilename derives keywords from an upload's file name, used when no
// provider is available or it fails.
func FromFilename(engine *relevance.Engine, name string) Analysis {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "." || base == string(filepath.Separator) {
		base = ""
	}
	return Analysis{
		Keywords:   engine.ExtractKeywords(base),
		Confidence: FilenameConfidence,
		Source:     SourceFilename,
	}
}
