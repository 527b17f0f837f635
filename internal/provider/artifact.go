package provider

import (
	"fmt"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"
)

// Artifact statuses reported by the completion provider.
const (
	ArtifactStatusCompleted  = "completed"
	ArtifactStatusCancelled  = "cancelled"
	ArtifactStatusFailed     = "failed"
	ArtifactStatusInProgress = "in_progress"
)

// DefaultOutputExpr extracts the assistant text parts from a completed
// artifact's output items.
const DefaultOutputExpr = "output[?type=='message'].content[] | [?type=='output_text'].text"

// ArtifactError is the provider's failure detail for a settled artifact.
type ArtifactError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Artifact is the provider's record of an asynchronous job. Output keeps the
// provider's raw item structure; use OutputText to pull the assistant text
// out of it.
type Artifact struct {
	ID     string         `json:"id"`
	Status string         `json:"status"`
	Output any            `json:"output,omitempty"`
	Error  *ArtifactError `json:"error,omitempty"`
	Usage  *ArtifactUsage `json:"usage,omitempty"`
}

// ArtifactUsage carries the provider's character accounting when present.
type ArtifactUsage struct {
	InputChars  int `json:"input_chars"`
	OutputChars int `json:"output_chars"`
}

// OutputText evaluates the JMESPath expression against the artifact output
// and joins the matched text parts with newlines. An empty expression falls
// back to DefaultOutputExpr. A successful evaluation with no matches returns
// an empty string.
func (a *Artifact) OutputText(expr string) (string, error) {
	if a == nil || a.Output == nil {
		return "", nil
	}
	if strings.TrimSpace(expr) == "" {
		expr = DefaultOutputExpr
	}

	compiled, err := jmespath.Compile(expr)
	if err != nil {
		return "", fmt.Errorf("compile output expression: %w", err)
	}
	result, err := compiled.Search(map[string]any{"output": a.Output})
	if err != nil {
		return "", fmt.Errorf("evaluate output expression: %w", err)
	}

	switch v := result.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n"), nil
	default:
		return "", fmt.Errorf("output expression yielded %T, want string or list", result)
	}
}
