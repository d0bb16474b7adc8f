package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/raaihank/gdpr-sentinel/internal/compliance"
	"github.com/raaihank/gdpr-sentinel/internal/privacy"
	"github.com/raaihank/gdpr-sentinel/internal/taxonomy"
	"go.uber.org/zap"
)

const allPresent = `Here is my answer: {"indicators":[
	{"id":"a.crit","present":true,"evidence":"alpha"},
	{"id":"a.minor","present":true,"evidence":"alpha"},
	{"id":"b.crit","present":true,"evidence":"beta"},
	{"id":"b.minor","present":false},
	{"id":"unknown","present":true}
]}`

func testTaxonomy(t *testing.T) *taxonomy.Taxonomy {
	t.Helper()
	tax, err := taxonomy.New(taxonomy.Definition{
		Version: "test",
		Categories: []taxonomy.Category{
			{ID: "a", Name: "Alpha", Weight: 0.5, Indicators: []taxonomy.Indicator{
				{ID: "a.crit", Concept: "alpha critical", Patterns: []string{"alpha critical"}, Criticality: taxonomy.Critical},
				{ID: "a.minor", Concept: "alpha minor", Patterns: []string{"alpha minor"}, Criticality: taxonomy.Minor},
			}},
			{ID: "b", Name: "Beta", Weight: 0.5, Indicators: []taxonomy.Indicator{
				{ID: "b.crit", Concept: "beta critical", Patterns: []string{"beta critical"}, Criticality: taxonomy.Critical},
				{ID: "b.minor", Concept: "beta minor", Patterns: []string{"beta minor"}, Criticality: taxonomy.Minor},
			}},
		},
	})
	if err != nil {
		t.Fatalf("Failed to build taxonomy: %v", err)
	}
	return tax
}

func newPipeline(tax *taxonomy.Taxonomy, provider Provider, opts LLMOptions, timeout time.Duration) *Pipeline {
	logger := zap.NewNop()
	rule := NewRuleBased(compliance.NewEngine(tax, logger))
	return NewPipeline(NewLLM(provider, tax, opts, logger), rule, timeout, logger)
}

type memoryCache struct {
	mu      sync.Mutex
	reports map[string]*compliance.Report
}

func (c *memoryCache) GetReport(_ context.Context, key string) (*compliance.Report, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.reports[key]
	return r, ok, nil
}

func (c *memoryCache) SetReport(_ context.Context, key string, r *compliance.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports[key] = r
	return nil
}

func TestPipelineUsesModel(t *testing.T) {
	tax := testTaxonomy(t)
	fake := NewFake(allPresent)
	p := newPipeline(tax, fake, LLMOptions{Model: "test-model"}, time.Second)

	outcome, err := p.Analyze(context.Background(), "Some document without keywords.")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if outcome.FellBack {
		t.Fatalf("Did not expect fallback: %s", outcome.FallbackReason)
	}
	r := outcome.Report
	if r.Source != compliance.SourceLLM {
		t.Errorf("Expected llm source, got %s", r.Source)
	}
	if r.OverallScore != 75.0 {
		t.Errorf("Expected 75.0, got %v", r.OverallScore)
	}
	if len(r.Gaps) != 1 || r.Gaps[0].ID != "b.minor" {
		t.Errorf("Expected single b.minor gap, got %+v", r.Gaps)
	}
	if p.Strategy() != "llm" {
		t.Errorf("Expected llm strategy, got %s", p.Strategy())
	}

	req := fake.Requests[0]
	if req.Model != "test-model" || len(req.Messages) != 2 {
		t.Fatalf("Unexpected request: %+v", req)
	}
	if !strings.Contains(req.Messages[0].Content, "a.crit (Alpha): alpha critical") {
		t.Errorf("System prompt does not list indicators:\n%s", req.Messages[0].Content)
	}
}

func TestPipelineFallback(t *testing.T) {
	tax := testTaxonomy(t)
	doc := "We cover alpha critical and beta critical."

	tests := []struct {
		name     string
		provider *FakeProvider
		timeout  time.Duration
	}{
		{"ProviderError", &FakeProvider{Error: errors.New("connection refused")}, time.Second},
		{"Timeout", &FakeProvider{ResponseText: allPresent, Delay: 500 * time.Millisecond}, 20 * time.Millisecond},
		{"NotJSON", NewFake("I cannot help with that."), time.Second},
		{"NoKnownIndicators", NewFake(`{"indicators":[{"id":"ghost","present":true}]}`), time.Second},
		{"BrokenJSON", NewFake(`{"indicators": [}`), time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(tax, tt.provider, LLMOptions{}, tt.timeout)

			outcome, err := p.Analyze(context.Background(), doc)
			if err != nil {
				t.Fatalf("Fallback should produce a report, got %v", err)
			}
			if !outcome.FellBack || outcome.FallbackReason == "" {
				t.Error("Expected fallback to be recorded")
			}
			if outcome.Report.Source != compliance.SourceRuleBased {
				t.Errorf("Expected rule_based source, got %s", outcome.Report.Source)
			}
			if outcome.Report.OverallScore != 50.0 {
				t.Errorf("Expected rule-based score 50.0, got %v", outcome.Report.OverallScore)
			}
		})
	}
}

func TestLLMErrorsAreUnavailable(t *testing.T) {
	tax := testTaxonomy(t)
	l := NewLLM(&FakeProvider{Error: errors.New("boom")}, tax, LLMOptions{}, nil)

	_, err := l.Analyze(context.Background(), "text")
	if !errors.Is(err, ErrExternalAnalysisUnavailable) {
		t.Errorf("Expected ErrExternalAnalysisUnavailable, got %v", err)
	}
}

func TestPipelineInvalidInput(t *testing.T) {
	tax := testTaxonomy(t)
	fake := NewFake(allPresent)
	p := newPipeline(tax, fake, LLMOptions{}, time.Second)

	_, err := p.Analyze(context.Background(), "bad \xff bytes")
	if !errors.Is(err, compliance.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
	if len(fake.Requests) != 0 {
		t.Error("Invalid input must not reach the provider")
	}
}

func TestLLMRedactsAndTruncates(t *testing.T) {
	tax := testTaxonomy(t)
	detector, err := privacy.New(privacy.Config{Enabled: true}, zap.NewNop())
	if err != nil {
		t.Fatalf("privacy.New failed: %v", err)
	}

	fake := NewFake(allPresent)
	l := NewLLM(fake, tax, LLMOptions{MaxChars: 40, Redactor: detector}, zap.NewNop())

	doc := "Contact dpo@example.com about alpha critical. " + strings.Repeat("filler ", 100)
	if _, err := l.Analyze(context.Background(), doc); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	sent := fake.Requests[0].Messages[1].Content
	if strings.Contains(sent, "dpo@example.com") {
		t.Errorf("Email leaked to provider: %q", sent)
	}
	if !strings.Contains(sent, "[MASKED_EMAIL]") {
		t.Errorf("Expected masked email, got %q", sent)
	}
	if !strings.HasSuffix(sent, "...") || strings.Contains(sent, "filler filler filler") {
		t.Errorf("Expected truncated document, got %q", sent)
	}
}

func TestLLMCache(t *testing.T) {
	tax := testTaxonomy(t)
	fake := NewFake(allPresent)
	cache := &memoryCache{reports: map[string]*compliance.Report{}}
	l := NewLLM(fake, tax, LLMOptions{Model: "m", Cache: cache}, zap.NewNop())

	first, err := l.Analyze(context.Background(), "same document")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	second, err := l.Analyze(context.Background(), "same document")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(fake.Requests) != 1 {
		t.Errorf("Expected a single upstream call, got %d", len(fake.Requests))
	}
	if first.OverallScore != second.OverallScore {
		t.Errorf("Cached report differs: %v vs %v", first.OverallScore, second.OverallScore)
	}
}

func TestBuild(t *testing.T) {
	tax := testTaxonomy(t)

	tests := []struct {
		name     string
		cfg      Config
		strategy string
		wantErr  bool
	}{
		{"RuleBased", Config{Strategy: StrategyRuleBased, LLM: LLMConfig{Enabled: true, APIKey: "k"}}, "rule_based", false},
		{"AutoWithoutCredential", Config{Strategy: StrategyAuto, LLM: LLMConfig{Enabled: true}}, "rule_based", false},
		{"AutoDisabled", Config{LLM: LLMConfig{APIKey: "k"}}, "rule_based", false},
		{"AutoWithCredential", Config{Strategy: StrategyAuto, LLM: LLMConfig{Enabled: true, APIKey: "k"}}, "llm", false},
		{"AutoWithBaseURL", Config{LLM: LLMConfig{Enabled: true, BaseURL: "http://localhost:11434/v1"}}, "llm", false},
		{"LLMWithoutCredential", Config{Strategy: StrategyLLM, LLM: LLMConfig{Enabled: true}}, "", true},
		{"Unknown", Config{Strategy: "oracle"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Build(tt.cfg, tax, nil, nil, zap.NewNop())
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Build failed: %v", err)
			}
			if p.Strategy() != tt.strategy {
				t.Errorf("Expected strategy %s, got %s", tt.strategy, p.Strategy())
			}
		})
	}
}

func TestOpenAIProvider(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Errorf("Unexpected path %s", r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer secret" {
				t.Errorf("Unexpected auth header %q", got)
			}
			var body openAIChatRequest
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("Bad request body: %v", err)
			}
			if body.Model != "gpt-test" {
				t.Errorf("Unexpected model %q", body.Model)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"indicators\":[]}"}}],"usage":{"total_tokens":12}}`))
		}))
		defer srv.Close()

		p := NewOpenAI(srv.URL+"/", "secret", time.Second, 0)
		resp, err := p.ChatCompletion(context.Background(), &ChatRequest{Model: "gpt-test"})
		if err != nil {
			t.Fatalf("ChatCompletion failed: %v", err)
		}
		if resp.Content != `{"indicators":[]}` || resp.TotalTokens != 12 {
			t.Errorf("Unexpected response %+v", resp)
		}
	})

	t.Run("ErrorBody", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"auth"}}`))
		}))
		defer srv.Close()

		_, err := NewOpenAI(srv.URL, "bad", time.Second, 0).ChatCompletion(context.Background(), &ChatRequest{})
		if err == nil || !strings.Contains(err.Error(), "invalid api key") {
			t.Errorf("Expected upstream error message, got %v", err)
		}
	})

	t.Run("ResponseTooLarge", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		}))
		defer srv.Close()

		_, err := NewOpenAI(srv.URL, "", time.Second, 16).ChatCompletion(context.Background(), &ChatRequest{})
		if err == nil || !strings.Contains(err.Error(), "exceeded limit") {
			t.Errorf("Expected size limit error, got %v", err)
		}
	})
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo wörld", 5); got != "héllo..." {
		t.Errorf("Unexpected truncation %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Errorf("Unexpected truncation %q", got)
	}
}
