package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/todmy/logic-refine/pkg/models"
)

// Config holds generator configuration
type Config struct {
	MaxRetries        int           `yaml:"max_retries"`
	RetryBackoff      time.Duration `yaml:"retry_backoff"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	MaxConcurrent     int           `yaml:"max_concurrent"`
}

// DefaultConfig returns default generator configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries:        2,
		RetryBackoff:      time.Second,
		RequestsPerSecond: 5,
		Burst:             5,
		MaxConcurrent:     4,
	}
}

// LLMGenerator produces and judges formalizations with a chat model
type LLMGenerator struct {
	client  ChatClient
	config  Config
	limiter *rate.Limiter
	logger  logrus.FieldLogger
	calls   atomic.Int64
}

// New creates a generator over a chat client
func New(client ChatClient, config Config, logger logrus.FieldLogger) *LLMGenerator {
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = DefaultConfig().RetryBackoff
	}
	if config.Burst <= 0 {
		config.Burst = DefaultConfig().Burst
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	return &LLMGenerator{
		client:  client,
		config:  config,
		limiter: rate.NewLimiter(limit, config.Burst),
		logger:  logger,
	}
}

// Calls returns the number of model requests made so far
func (g *LLMGenerator) Calls() int {
	return int(g.calls.Load())
}

// Formalize produces the initial, unrefined formalization payload
func (g *LLMGenerator) Formalize(ctx context.Context, statement string) (string, error) {
	return g.call(ctx, buildFormalizePrompt(statement))
}

// Propose requests n alternative formalizations concurrently
func (g *LLMGenerator) Propose(ctx context.Context, statement string, best models.Formalization, feedback string, n int) ([]string, error) {
	if n <= 0 {
		n = 1
	}
	payloads := make([]string, n)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.config.MaxConcurrent)
	for i := 0; i < n; i++ {
		eg.Go(func() error {
			out, err := g.call(egCtx, buildProposePrompt(statement, best, feedback, i, n))
			if err != nil {
				return fmt.Errorf("candidate %d: %w", i+1, err)
			}
			payloads[i] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return payloads, nil
}

// Compare asks the model which formalization better preserves the statement's
// meaning. A is the current best and B the candidate.
func (g *LLMGenerator) Compare(ctx context.Context, statement string, a, b models.Formalization) (models.Comparison, error) {
	out, err := g.call(ctx, buildComparePrompt(statement, a, b))
	if err != nil {
		return models.Comparison{}, err
	}
	return ParseVerdict(out), nil
}

func (g *LLMGenerator) call(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	attempts := g.config.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(g.config.RetryBackoff * time.Duration(attempt)):
			}
		}
		if err := g.limiter.Wait(ctx); err != nil {
			return "", err
		}

		g.calls.Add(1)
		out, err := g.client.Complete(ctx, systemPrompt, prompt)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		g.logger.WithError(err).WithField("attempt", attempt+1).Warn("generator request failed")
	}
	return "", fmt.Errorf("generator request failed after %d attempts: %w", attempts, lastErr)
}

const verdictLetter = `(?:formalization\s+)?\**((?-i:[AB]))\b`

// verdictPatterns name the preferred formalization in prose. A letter after
// "than" or "over" is the rejected side and is never captured.
var verdictPatterns = []struct {
	re      *regexp.Regexp
	inverse bool
}{
	{re: regexp.MustCompile(`(?i)\b(?:preferred|verdict|answer|choice|winner)\s*[:=]\s*` + verdictLetter)},
	{re: regexp.MustCompile(`(?i)\b` + verdictLetter + `\**\s+(?:is|seems|looks|remains)\s+(?:clearly\s+|much\s+|slightly\s+)?(?:the\s+)?(?:better|preferred|preferable|superior|more\s+(?:faithful|accurate|correct))\b`)},
	{re: regexp.MustCompile(`(?i)\bprefer(?:s|red)?\s+` + verdictLetter)},
	{re: regexp.MustCompile(`(?i)\b` + verdictLetter + `\**\s+(?:is|seems|looks)\s+(?:clearly\s+|much\s+|slightly\s+)?(?:the\s+)?(?:worse|inferior|less\s+(?:faithful|accurate|correct))\b`), inverse: true},
}

type verdictResponse struct {
	Preferred string `json:"preferred"`
	Verdict   string `json:"verdict"`
	Reasoning string `json:"reasoning"`
}

// ParseVerdict extracts a comparison verdict from a model response. A response
// that names neither formalization keeps the current best (A).
func ParseVerdict(response string) models.Comparison {
	text := strings.TrimSpace(response)

	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		var vr verdictResponse
		if err := json.Unmarshal([]byte(text[start:end+1]), &vr); err == nil {
			choice := vr.Preferred
			if choice == "" {
				choice = vr.Verdict
			}
			if v, ok := verdictOf(choice); ok {
				return models.Comparison{Verdict: v, Reasoning: strings.TrimSpace(vr.Reasoning)}
			}
		}
	}

	if v, ok := verdictOf(text); ok {
		return models.Comparison{Verdict: v}
	}
	if v, ok := proseVerdict(text); ok {
		return models.Comparison{Verdict: v, Reasoning: text}
	}

	return models.Comparison{
		Verdict:   models.VerdictA,
		Reasoning: "comparator verdict unparseable, keeping current best: " + abbreviate(text, 160),
	}
}

// proseVerdict reports the side every matching phrase agrees on. Conflicting
// phrases are not a verdict.
func proseVerdict(text string) (models.Verdict, bool) {
	var found models.Verdict
	for _, p := range verdictPatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			v, _ := verdictOf(m[1])
			if p.inverse {
				v = other(v)
			}
			if found != "" && found != v {
				return "", false
			}
			found = v
		}
	}
	return found, found != ""
}

func other(v models.Verdict) models.Verdict {
	if v == models.VerdictA {
		return models.VerdictB
	}
	return models.VerdictA
}

func verdictOf(s string) (models.Verdict, bool) {
	switch strings.ToUpper(strings.Trim(strings.TrimSpace(s), `"'*.`)) {
	case "A", "FORMALIZATION A":
		return models.VerdictA, true
	case "B", "FORMALIZATION B":
		return models.VerdictB, true
	default:
		return "", false
	}
}

func abbreviate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
