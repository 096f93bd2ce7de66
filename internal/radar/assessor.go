package radar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/iliamunaev/Valinor-Secure/internal/audit"
	"github.com/iliamunaev/Valinor-Secure/internal/llm"
)

// ErrNoAssessment indicates the model returned nothing usable.
var ErrNoAssessment = errors.New("no usable assessment from model")

// Assessor turns an assessment request into a structured trust report by
// querying a chat model. With no client configured it degrades to a
// conservative baseline report, which keeps the service usable offline.
type Assessor struct {
	Client llm.Client
	Model  string
	// Audit, when non-nil, records every raw model interaction.
	Audit *audit.Log
}

// Assess produces the trust report for req. The returned assessment does
// not carry a cache key; the workflow sets it after key derivation.
func (a *Assessor) Assess(ctx context.Context, req Request) (*Assessment, error) {
	if a.Client == nil || strings.TrimSpace(a.Model) == "" {
		return a.baseline(req), nil
	}

	system := buildSystemMessage()
	user := buildUserMessage(req)

	chatReq := openai.ChatCompletionRequest{
		Model: a.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.1,
		N:           1,
	}

	started := time.Now()
	resp, err := a.Client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		// One short fixed-backoff retry for transient transport errors.
		sleep(100)
		resp, err = a.Client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			return nil, fmt.Errorf("assessment call (after retry): %w", err)
		}
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoAssessment
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, ErrNoAssessment
	}

	a.Audit.LLMInteraction(audit.RequestIDFrom(ctx), a.Model, system+"\n\n"+user, content, time.Since(started))

	assessment, err := parseAssessment(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoAssessment, err)
	}
	normalize(assessment, req)
	return assessment, nil
}

// parseAssessment decodes the model reply, tolerating a Markdown code
// fence around the JSON document.
func parseAssessment(content string) (*Assessment, error) {
	raw := strings.TrimSpace(content)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		if i := strings.LastIndex(raw, "```"); i >= 0 {
			raw = raw[:i]
		}
		raw = strings.TrimSpace(raw)
	}
	var out Assessment
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// normalize repairs model output that is structurally valid but loose:
// missing names, out-of-range scores, unknown categories.
func normalize(a *Assessment, req Request) {
	if strings.TrimSpace(a.ProductName) == "" {
		a.ProductName = req.ProductName
	}
	if strings.TrimSpace(a.Vendor.Name) == "" {
		a.Vendor.Name = vendorNameOr(req, "Unknown")
	}
	if strings.TrimSpace(a.Vendor.ReputationSummary) == "" {
		a.Vendor.ReputationSummary = InsufficientEvidence
	}
	if !knownCategories[a.Category] {
		a.Category = ClassifyProduct(a.ProductName)
	}
	if a.TrustScore.Score < 0 {
		a.TrustScore.Score = 0
	}
	if a.TrustScore.Score > 100 {
		a.TrustScore.Score = 100
	}
	if strings.TrimSpace(a.TrustScore.Confidence) == "" {
		a.TrustScore.Confidence = "Low"
	}
	if strings.TrimSpace(a.Compliance.Notes) == "" {
		a.Compliance.Notes = InsufficientEvidence
	}
	if strings.TrimSpace(a.CVETrends.TrendSummary) == "" {
		a.CVETrends.TrendSummary = InsufficientEvidence
	}
	if a.GeneratedAt.IsZero() {
		a.GeneratedAt = time.Now().UTC()
	}
}

// baseline is the no-model fallback: a conservative midpoint score with
// every evidence field marked as unsubstantiated.
func (a *Assessor) baseline(req Request) *Assessment {
	return &Assessment{
		ProductName: req.ProductName,
		Vendor: Vendor{
			Name:              vendorNameOr(req, "Unknown"),
			Website:           req.URL,
			ReputationSummary: InsufficientEvidence,
		},
		Category:         ClassifyProduct(req.ProductName),
		Description:      fmt.Sprintf("%s - assessment generated without model access", req.ProductName),
		UsageDescription: "Usage information requires vendor documentation review",
		CVETrends: CVETrend{
			TrendSummary: InsufficientEvidence + " - no CVE data available",
		},
		Compliance: Compliance{
			Notes: InsufficientEvidence + " for compliance assessment",
		},
		DeploymentModel: "Unknown",
		TrustScore: TrustScore{
			Score:       50,
			Confidence:  "Low",
			Rationale:   InsufficientEvidence + " for a comprehensive trust assessment; conservative default applied.",
			RiskFactors: []string{"Limited public security documentation"},
		},
		Citations: []Citation{{
			SourceType:  SourceVendorStated,
			Title:       "Assessment Note",
			Description: "Generated without model access. Configure an LLM backend for a full trust brief.",
		}},
		GeneratedAt: time.Now().UTC(),
	}
}

func vendorNameOr(req Request, fallback string) string {
	if strings.TrimSpace(req.CompanyName) != "" {
		return req.CompanyName
	}
	return fallback
}

// sleepFunc lets tests replace the retry backoff with a deterministic hook.
var sleepFunc func(ms int)

func sleep(ms int) {
	if sleepFunc != nil {
		sleepFunc(ms)
		return
	}
	time.Sleep(time.Duration(ms) * time.Millisecond)
}
