// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package translate localizes query terms for the target jurisdiction's
// language. Strictly best-effort: any failure leaves the original term
// unchanged and never blocks the pipeline.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/patent-scout/internal/httputil"
	"github.com/pdiddy/patent-scout/pkg/types"
)

// translateBase is the translation endpoint. Var so tests can substitute
// an httptest server.
var translateBase = "https://translate.googleapis.com/translate_a/single"

// Client calls the translation service.
type Client struct {
	HTTP *http.Client
	Cfg  types.TranslationConfig
}

// Translate returns term in the configured target language, or the
// original term unchanged on any failure.
func (c *Client) Translate(ctx context.Context, term string) string {
	target := c.Cfg.TargetLanguage
	if target == "" {
		target = "pt"
	}

	params := url.Values{
		"client": {"gtx"},
		"sl":     {"en"},
		"tl":     {target},
		"dt":     {"t"},
		"q":      {term},
	}
	if c.Cfg.APIKey != "" {
		params.Set("key", c.Cfg.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, translateBase+"?"+params.Encode(), nil)
	if err != nil {
		return term
	}
	req.Header.Set("User-Agent", c.Cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, c.HTTP, req, 1)
	if err != nil {
		return term
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return term
	}

	translated, err := parseTranslation(resp.Body)
	if err != nil || strings.TrimSpace(translated) == "" {
		return term
	}
	return translated
}

// Variants translates each term and returns the translations that
// actually differ from their originals, deduplicated, in input order.
func (c *Client) Variants(ctx context.Context, terms []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, term := range terms {
		translated := c.Translate(ctx, term)
		if strings.EqualFold(translated, term) || seen[strings.ToLower(translated)] {
			continue
		}
		seen[strings.ToLower(translated)] = true
		out = append(out, translated)
	}
	return out
}

// parseTranslation digs the translated string out of the service's
// nested-array payload: [[["<translated>","<original>",...]],...].
func parseTranslation(r io.Reader) (string, error) {
	var payload []any
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return "", err
	}
	if len(payload) == 0 {
		return "", fmt.Errorf("empty payload")
	}
	outer, ok := payload[0].([]any)
	if !ok || len(outer) == 0 {
		return "", fmt.Errorf("unexpected payload shape")
	}

	// Long inputs come back in several segments; concatenate them.
	var b strings.Builder
	for _, seg := range outer {
		inner, ok := seg.([]any)
		if !ok || len(inner) == 0 {
			continue
		}
		if s, ok := inner[0].(string); ok {
			b.WriteString(s)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no translated segments")
	}
	return b.String(), nil
}
