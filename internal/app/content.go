package app

import (
	"context"
	"fmt"

	"gopherai-slides/internal/logger"
	"gopherai-slides/internal/source"
)

type providerPolicy int

const (
	runAlways providerPolicy = iota
	// runWhenEmpty providers only run when every earlier provider produced nothing.
	runWhenEmpty
)

// generationRun is the per-request state shared by the pipeline stages.
type generationRun struct {
	id         string
	collection string
	prompt     string
	documents  []source.Result
	urls       []source.Result
	log        *logger.Logger
}

// contentProvider is one tier of the content chain.
type contentProvider struct {
	name    string
	policy  providerPolicy
	provide func(ctx context.Context, s *PresentationService, r *generationRun) (string, error)
}

func defaultProviders() []contentProvider {
	return []contentProvider{
		{name: "document", policy: runAlways, provide: documentContent},
		{name: "url", policy: runAlways, provide: urlContent},
		{name: "prompt", policy: runWhenEmpty, provide: promptContent},
	}
}

func documentContent(ctx context.Context, s *PresentationService, r *generationRun) (string, error) {
	for i, d := range r.documents {
		s.indexText(ctx, r, fmt.Sprintf("doc%d_chunk_", i), d.Text)
	}
	return source.JoinText(r.documents), nil
}

// urlContent summarizes whatever the scrapers returned. A generation error
// here is fatal; missing pages are not.
func urlContent(ctx context.Context, s *PresentationService, r *generationRun) (string, error) {
	text, failed := source.Aggregate(r.urls)
	if len(failed) > 0 {
		r.log.Warn("continuing without some urls", "failed", len(failed), "total", len(r.urls))
	}
	if text == "" {
		return "", nil
	}
	summary, err := s.generator.Complete(ctx, summarizeSystemPrompt, summarizeUserPrompt(text))
	if err != nil {
		return "", err
	}
	s.indexText(ctx, r, "url_chunk_", summary)
	return summary, nil
}

func promptContent(ctx context.Context, s *PresentationService, r *generationRun) (string, error) {
	prompt := source.PromptText(r.prompt)
	if prompt == "" {
		return "", nil
	}
	content, err := s.generator.Complete(ctx, synthesizeSystemPrompt, synthesizeUserPrompt(prompt))
	if err != nil {
		return "", err
	}
	s.indexText(ctx, r, "prompt_chunk_", content)
	return content, nil
}
