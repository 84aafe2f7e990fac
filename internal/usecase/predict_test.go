package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"risksync/internal/domain"
	"risksync/internal/retry"
)

const validReply = `{
	"Risk": "ResourceConstraints",
	"Issues": "Overtime",
	"Forecasted_Cost": 262000,
	"Forecasted_Deviation": 12000,
	"Burnout_Risk": 70
}`

type mockParams struct {
	vals map[string]string
	err  error
}

func (m *mockParams) GetParameter(_ context.Context, name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.vals[name]
	if !ok {
		return "", fmt.Errorf("param not found: %s", name)
	}
	return v, nil
}

func defaultParams() *mockParams {
	return &mockParams{vals: map[string]string{
		"/risksync/config/openai_model": "gpt-mock",
	}}
}

type chatReply struct {
	text string
	err  error
}

// mockLLM replays replies in order, repeating the last one once exhausted.
type mockLLM struct {
	replies   []chatReply
	callCount int
	lastModel string
	lastMsgs  []domain.ChatMessage
}

func (m *mockLLM) Chat(_ context.Context, model string, msgs []domain.ChatMessage) (string, error) {
	m.lastModel = model
	m.lastMsgs = msgs
	if len(m.replies) == 0 {
		return "", errors.New("no llm reply configured")
	}
	idx := m.callCount
	if idx >= len(m.replies) {
		idx = len(m.replies) - 1
	}
	m.callCount++
	return m.replies[idx].text, m.replies[idx].err
}

func fastPredictPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: time.Microsecond, MaxDelay: time.Millisecond, Jitter: time.Nanosecond}
}

func mustNewPredictor(t *testing.T, params ParamGetter, llm LLMClient) *Predictor {
	t.Helper()
	p, err := NewPredictor(params, llm, "/risksync", fastPredictPolicy())
	require.NoError(t, err)
	return p
}

func TestNewPredictor_Validation(t *testing.T) {
	llm := &mockLLM{}
	_, err := NewPredictor(nil, llm, "/risksync", fastPredictPolicy())
	require.Error(t, err)
	_, err = NewPredictor(defaultParams(), nil, "/risksync", fastPredictPolicy())
	require.Error(t, err)
	_, err = NewPredictor(defaultParams(), llm, "  ", fastPredictPolicy())
	require.Error(t, err)
}

func TestPredict_HappyPath(t *testing.T) {
	llm := &mockLLM{replies: []chatReply{{text: validReply}}}
	p := mustNewPredictor(t, defaultParams(), llm)

	pred, err := p.Predict(context.Background(), map[string]any{"Allocated Hours": 1200})
	require.NoError(t, err)
	require.Equal(t, "ResourceConstraints", pred.Risk)
	require.Equal(t, 70.0, pred.BurnoutRisk)
	require.Equal(t, 1, llm.callCount)
	require.Equal(t, "gpt-mock", llm.lastModel)

	require.Len(t, llm.lastMsgs, 2)
	require.Equal(t, "system", llm.lastMsgs[0].Role)
	require.Contains(t, llm.lastMsgs[0].Content, "Risk must be exactly one of")
	require.Equal(t, "user", llm.lastMsgs[1].Role)
	require.Contains(t, llm.lastMsgs[1].Content, `"Allocated Hours":1200`)
}

func TestPredict_PreambleFromParamStore(t *testing.T) {
	params := defaultParams()
	params.vals["/risksync/prompt_preamble"] = "Tenant context: ACME staffing projects."
	llm := &mockLLM{replies: []chatReply{{text: validReply}}}
	p := mustNewPredictor(t, params, llm)

	_, err := p.Predict(context.Background(), map[string]any{})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(llm.lastMsgs[0].Content, "Tenant context: ACME staffing projects."))
}

func TestPredict_RecoversFromTransportFailures(t *testing.T) {
	llm := &mockLLM{replies: []chatReply{
		{err: errors.New("connection reset")},
		{err: errors.New("429 rate limited")},
		{text: validReply},
	}}
	p := mustNewPredictor(t, defaultParams(), llm)

	pred, err := p.Predict(context.Background(), map[string]any{})
	require.NoError(t, err)
	require.Equal(t, "ResourceConstraints", pred.Risk)
	require.Equal(t, 3, llm.callCount)
}

func TestPredict_RecoversFromMalformedReply(t *testing.T) {
	llm := &mockLLM{replies: []chatReply{
		{text: `sorry, here is your JSON:`},
		{text: validReply},
	}}
	p := mustNewPredictor(t, defaultParams(), llm)

	pred, err := p.Predict(context.Background(), map[string]any{})
	require.NoError(t, err)
	require.Equal(t, "Overtime", pred.Issues)
	require.Equal(t, 2, llm.callCount)
}

func TestPredict_ExhaustsAttempts(t *testing.T) {
	llm := &mockLLM{replies: []chatReply{{err: errors.New("upstream down")}}}
	p := mustNewPredictor(t, defaultParams(), llm)

	_, err := p.Predict(context.Background(), map[string]any{})
	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, ErrorPrediction, ucErr.Code)
	require.Equal(t, "all_attempts_failed", ucErr.Reason)
	require.Contains(t, err.Error(), "upstream down", "last underlying error must surface")
	require.Equal(t, 3, llm.callCount, "exactly MaxAttempts calls")
}

func TestPredict_ParamStoreFailure(t *testing.T) {
	llm := &mockLLM{replies: []chatReply{{text: validReply}}}
	p := mustNewPredictor(t, &mockParams{err: errors.New("ssm unavailable")}, llm)

	_, err := p.Predict(context.Background(), map[string]any{})
	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, ErrorPrediction, ucErr.Code)
	require.Equal(t, "ssm_load_error", ucErr.Reason)
	require.Zero(t, llm.callCount)
}

func TestPredict_ConfigLoadedOnce(t *testing.T) {
	calls := 0
	params := &countingParams{inner: defaultParams(), calls: &calls}
	llm := &mockLLM{replies: []chatReply{{text: validReply}}}
	p := mustNewPredictor(t, params, llm)

	_, err := p.Predict(context.Background(), map[string]any{})
	require.NoError(t, err)
	first := calls
	_, err = p.Predict(context.Background(), map[string]any{})
	require.NoError(t, err)
	require.Equal(t, first, calls, "SSM config must be cached after the first prediction")
}

type countingParams struct {
	inner ParamGetter
	calls *int
}

func (c *countingParams) GetParameter(ctx context.Context, name string) (string, error) {
	*c.calls++
	return c.inner.GetParameter(ctx, name)
}
