// Package narrative writes a short executive summary of forecast accuracy and
// recommendations using OpenAI. It is optional: without OPENAI_API_KEY no
// summarizer is created and callers skip the section.
package narrative

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/lox/stockcast/internal/accuracy"
	"github.com/lox/stockcast/internal/htmlutil"
	"github.com/lox/stockcast/internal/models"
)

// ErrDisabled is returned by NewSummarizer when no API key is configured.
var ErrDisabled = errors.New("OPENAI_API_KEY environment variable not set")

const requestTimeout = 20 * time.Second

const systemPrompt = "You write concise executive summaries of warehouse sales forecast performance for operations managers."

// Input is everything the summary is written from.
type Input struct {
	KPIs            accuracy.KPIs
	Summaries       []models.MetricSummary
	Recommendations []models.Recommendation
	Gaps            []string
}

// Summarizer handles summary generation using OpenAI's chat API. Results are
// cached per prompt.
type Summarizer struct {
	client openai.Client
	model  openai.ChatModel

	mu    sync.Mutex
	cache map[string]string
}

// NewSummarizer reads the OPENAI_API_KEY environment variable for
// authentication.
func NewSummarizer() (*Summarizer, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrDisabled
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &Summarizer{
		client: client,
		model:  openai.ChatModelGPT4oMini,
		cache:  make(map[string]string),
	}, nil
}

// Summarize returns a four to five sentence summary.
func (s *Summarizer) Summarize(ctx context.Context, in Input) (string, error) {
	prompt := Prompt(in)
	key := promptKey(prompt)

	s.mu.Lock()
	cached, ok := s.cache[key]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	log.Printf("narrative: requesting summary (%d metric rows, %d recommendations)", len(in.Summaries), len(in.Recommendations))

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: s.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		return "", fmt.Errorf("summary generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no summary returned")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("empty summary returned")
	}

	s.mu.Lock()
	s.cache[key] = text
	s.mu.Unlock()
	return text, nil
}

// Prompt renders the user message. Numbers are rounded as they are on the
// dashboard.
func Prompt(in Input) string {
	var b strings.Builder
	b.WriteString("Summarize this forecast accuracy report in 4-5 sentences. ")
	b.WriteString("Name the strongest and weakest warehouse/model, include 1-2 risks and 1-2 actionable next steps.\n\n")

	fmt.Fprintf(&b, "Total sales: %.0f\n", in.KPIs.TotalSales)
	fmt.Fprintf(&b, "Average weekly sales: %.2f\n", in.KPIs.AverageSales)
	if in.KPIs.HasMAE {
		fmt.Fprintf(&b, "Overall MAE: %.2f\n", in.KPIs.MAE)
	}

	if len(in.Summaries) > 0 {
		b.WriteString("\nModel performance (warehouse, model, MAE, RMSE, bias, interpretation):\n")
		for _, s := range in.Summaries {
			r := s.Rounded()
			fmt.Fprintf(&b, "- %s, %s, %.2f, %.2f, %.2f, %s\n",
				htmlutil.DisplayName(r.Location), r.Model, r.MAE, r.RMSE, r.Bias, r.Interpretation)
		}
	}

	if len(in.Recommendations) > 0 {
		b.WriteString("\nRecommendations:\n")
		for _, r := range in.Recommendations {
			fmt.Fprintf(&b, "- %s (%s): %s; next: %s\n",
				htmlutil.DisplayName(r.Location), r.Condition, htmlutil.ToLine(r.PriorityAction), htmlutil.ToLine(r.NextStep))
		}
	}

	if len(in.Gaps) > 0 {
		fmt.Fprintf(&b, "\nWarehouses without a recommendation rule: %s\n", strings.Join(in.Gaps, ", "))
	}
	return b.String()
}

func promptKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
