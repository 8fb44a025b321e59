package enrich

// Package enrich derives summaries and tag suggestions from document
// content. A remote chat-completions model is used when an API key is
// configured; otherwise (and whenever the remote call fails) local
// heuristics take over, so enrichment never blocks the catalog.

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"kbapi/internal/config"
)

const (
	maxAnalyzeBytes = 10 << 20
	previewRunes    = 500
	maxPromptRunes  = 8000
	minTags         = 5
	maxTags         = 8
)

// Analysis is the result of a full file analysis.
type Analysis struct {
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
	Preview string   `json:"text_preview"`
}

// Enricher produces summaries and tags for document content.
type Enricher interface {
	// AnalyzeFile extracts text from an uploaded file and derives a summary,
	// tag suggestions, and a short preview.
	AnalyzeFile(ctx context.Context, r io.Reader, filename string, size int64) (*Analysis, error)

	// GenerateSummary produces a short summary of the given text.
	GenerateSummary(ctx context.Context, text string) (string, error)

	// GenerateTags proposes lowercase tags for the given text.
	GenerateTags(ctx context.Context, text string) ([]string, error)
}

type enricher struct {
	client *chatClient // nil when no API key is configured
}

// New builds an Enricher from config. An empty API key selects the
// heuristic-only mode.
func New(cfg config.AIConfig) Enricher {
	e := &enricher{}
	if cfg.APIKey != "" {
		e.client = newChatClient(cfg)
	}
	return e
}

func (e *enricher) AnalyzeFile(ctx context.Context, r io.Reader, filename string, size int64) (*Analysis, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxAnalyzeBytes))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	text, err := extractText(filename, data)
	if err != nil {
		return nil, err
	}

	summary, err := e.GenerateSummary(ctx, text)
	if err != nil {
		return nil, err
	}
	tags, err := e.GenerateTags(ctx, text)
	if err != nil {
		return nil, err
	}

	return &Analysis{
		Summary: summary,
		Tags:    tags,
		Preview: truncateRunes(text, previewRunes),
	}, nil
}

func (e *enricher) GenerateSummary(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	if e.client != nil {
		prompt := "Summarize the following document in two or three sentences:\n\n" +
			truncateRunes(text, maxPromptRunes)
		if out, err := e.client.complete(ctx, prompt); err == nil {
			return strings.TrimSpace(out), nil
		}
	}
	return heuristicSummary(text), nil
}

func (e *enricher) GenerateTags(ctx context.Context, text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return []string{}, nil
	}
	if e.client != nil {
		prompt := fmt.Sprintf(
			"Propose %d to %d short lowercase topic tags for the following document. "+
				"Reply with a comma-separated list only:\n\n%s",
			minTags, maxTags, truncateRunes(text, maxPromptRunes))
		if out, err := e.client.complete(ctx, prompt); err == nil {
			if tags := parseTagList(out); len(tags) > 0 {
				return tags, nil
			}
		}
	}
	return heuristicTags(text), nil
}

// extractText pulls plain text out of supported file types. Only PDFs carry
// extractable text here; other kinds yield an empty string and enrichment
// falls back to whatever the caller supplied.
func extractText(filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".pdf" {
		return "", nil
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var text strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text.WriteString(pageText)
		text.WriteString("\n\n")
	}
	return strings.TrimSpace(text.String()), nil
}

// parseTagList splits a model reply into clean lowercase tags.
func parseTagList(s string) []string {
	s = strings.NewReplacer("\n", ",", ";", ",").Replace(s)
	seen := make(map[string]struct{})
	var tags []string
	for _, t := range strings.Split(s, ",") {
		t = strings.ToLower(strings.TrimSpace(strings.Trim(strings.TrimSpace(t), `"'.`)))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
		if len(tags) == maxTags {
			break
		}
	}
	return tags
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
