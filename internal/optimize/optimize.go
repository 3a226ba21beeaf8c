// Package optimize rewrites an article's HTML for engagement using a
// generative model. It never touches the article store: callers decide what
// to do with the suggestion.
package optimize

import (
	"context"
	"errors"
	"strings"
)

// ErrUnavailable means the optimizer is switched off or its breaker is open.
var ErrUnavailable = errors.New("content optimizer unavailable")

type Request struct {
	ContentBlock   string `json:"contentBlock" validate:"required"`
	TargetAudience string `json:"targetAudience" validate:"required"`
	WebsiteType    string `json:"websiteType" validate:"required"`
}

type Result struct {
	OptimizedContent string `json:"optimizedContent"`
	Explanation      string `json:"explanation"`
}

// Optimizer rewrites one content block.
type Optimizer interface {
	Optimize(ctx context.Context, req Request) (Result, error)
}

// Validate checks that every field carries text.
func (r Request) Validate() error {
	var missing []string
	if strings.TrimSpace(r.ContentBlock) == "" {
		missing = append(missing, "contentBlock")
	}
	if strings.TrimSpace(r.TargetAudience) == "" {
		missing = append(missing, "targetAudience")
	}
	if strings.TrimSpace(r.WebsiteType) == "" {
		missing = append(missing, "websiteType")
	}
	if len(missing) > 0 {
		return errors.New("missing " + strings.Join(missing, ", "))
	}
	return nil
}

// Disabled is used when no API key is configured.
type Disabled struct{}

func (Disabled) Optimize(context.Context, Request) (Result, error) {
	return Result{}, ErrUnavailable
}
