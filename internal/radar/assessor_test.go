package radar

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubClient replays canned replies and errors in order.
type stubClient struct {
	replies []string
	errs    []error
	calls   int
	lastReq openai.ChatCompletionRequest
}

func (s *stubClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.lastReq = req
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return openai.ChatCompletionResponse{}, s.errs[i]
	}
	reply := ""
	if i < len(s.replies) {
		reply = s.replies[i]
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply}},
		},
	}, nil
}

func withInstantRetry(t *testing.T) {
	t.Helper()
	prev := sleepFunc
	sleepFunc = func(int) {}
	t.Cleanup(func() { sleepFunc = prev })
}

const modelReply = `{
	"product_name": "FileZilla",
	"vendor": {"name": "Tim Kosse", "reputation_summary": "Long-standing open-source developer"},
	"category": "File Sharing",
	"description": "Free FTP client",
	"usage_description": "File transfers via FTP/SFTP",
	"cve_trends": {"total_cves": 5, "high_count": 2, "trend_summary": "Occasional issues"},
	"compliance": {"notes": "Open-source project, no formal certifications"},
	"trust_score": {"score": 65, "confidence": "Medium", "rationale": "Established project"}
}`

func TestAssessorBaselineWithoutClient(t *testing.T) {
	a := &Assessor{}
	got, err := a.Assess(context.Background(), Request{ProductName: "KeePass", CompanyName: "Dominik Reichl"})
	require.NoError(t, err)
	assert.Equal(t, "KeePass", got.ProductName)
	assert.Equal(t, "Dominik Reichl", got.Vendor.Name)
	assert.Equal(t, CategoryPasswordManager, got.Category)
	assert.Equal(t, 50, got.TrustScore.Score)
	assert.Equal(t, "Low", got.TrustScore.Confidence)
	assert.False(t, got.GeneratedAt.IsZero())
}

func TestAssessorParsesModelReply(t *testing.T) {
	stub := &stubClient{replies: []string{modelReply}}
	a := &Assessor{Client: stub, Model: "test-model"}
	got, err := a.Assess(context.Background(), Request{ProductName: "FileZilla"})
	require.NoError(t, err)
	assert.Equal(t, "FileZilla", got.ProductName)
	assert.Equal(t, CategoryFileSharing, got.Category)
	assert.Equal(t, 65, got.TrustScore.Score)
	assert.Equal(t, 5, got.CVETrends.TotalCVEs)
	assert.Equal(t, "test-model", stub.lastReq.Model)
	require.Len(t, stub.lastReq.Messages, 2)
	assert.Contains(t, stub.lastReq.Messages[1].Content, "FileZilla")
}

func TestAssessorStripsCodeFence(t *testing.T) {
	stub := &stubClient{replies: []string{"```json\n" + modelReply + "\n```"}}
	a := &Assessor{Client: stub, Model: "m"}
	got, err := a.Assess(context.Background(), Request{ProductName: "FileZilla"})
	require.NoError(t, err)
	assert.Equal(t, 65, got.TrustScore.Score)
}

func TestAssessorRetriesOnceOnTransportError(t *testing.T) {
	withInstantRetry(t)
	stub := &stubClient{
		errs:    []error{errors.New("temporarily unavailable"), nil},
		replies: []string{"", modelReply},
	}
	a := &Assessor{Client: stub, Model: "m"}
	got, err := a.Assess(context.Background(), Request{ProductName: "FileZilla"})
	require.NoError(t, err)
	assert.Equal(t, 65, got.TrustScore.Score)
	assert.Equal(t, 2, stub.calls)
}

func TestAssessorFailsAfterRetry(t *testing.T) {
	withInstantRetry(t)
	boom := errors.New("backend down")
	stub := &stubClient{errs: []error{boom, boom}}
	a := &Assessor{Client: stub, Model: "m"}
	_, err := a.Assess(context.Background(), Request{ProductName: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, stub.calls)
}

func TestAssessorRejectsUnparsableReply(t *testing.T) {
	stub := &stubClient{replies: []string{"I cannot help with that."}}
	a := &Assessor{Client: stub, Model: "m"}
	_, err := a.Assess(context.Background(), Request{ProductName: "x"})
	assert.ErrorIs(t, err, ErrNoAssessment)
}

func TestAssessorNormalizesLooseOutput(t *testing.T) {
	stub := &stubClient{replies: []string{`{
		"vendor": {},
		"category": "Not A Real Category",
		"trust_score": {"score": 150}
	}`}}
	a := &Assessor{Client: stub, Model: "m"}
	got, err := a.Assess(context.Background(), Request{ProductName: "Slack", CompanyName: "Salesforce"})
	require.NoError(t, err)
	assert.Equal(t, "Slack", got.ProductName)
	assert.Equal(t, "Salesforce", got.Vendor.Name)
	assert.Equal(t, CategoryCommunication, got.Category)
	assert.Equal(t, 100, got.TrustScore.Score)
	assert.Equal(t, "Low", got.TrustScore.Confidence)
	assert.Equal(t, InsufficientEvidence, got.Compliance.Notes)
}

func TestRequestValidate(t *testing.T) {
	assert.ErrorIs(t, Request{}.Validate(), ErrEmptyProduct)
	assert.ErrorIs(t, Request{ProductName: "   "}.Validate(), ErrEmptyProduct)
	assert.NoError(t, Request{ProductName: "FileZilla"}.Validate())
}
