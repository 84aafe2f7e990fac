package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"risksync/internal/domain"
	"risksync/internal/retry"
)

type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

type LLMClient interface {
	Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error)
}

// Predictor obtains a normalized Prediction for one row's input data. Model
// name and an optional prompt preamble are resolved from Parameter Store on
// first use and cached for the process lifetime.
type Predictor struct {
	params      ParamGetter
	llm         LLMClient
	paramPrefix string
	policy      retry.Policy

	cacheMu     sync.RWMutex
	cacheLoaded bool
	model       string
	preamble    string
}

func NewPredictor(params ParamGetter, llm LLMClient, paramPrefix string, policy retry.Policy) (*Predictor, error) {
	if params == nil {
		return nil, errors.New("usecase: param getter must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("usecase: parameter prefix must not be empty")
	}
	return &Predictor{
		params:      params,
		llm:         llm,
		paramPrefix: paramPrefix,
		policy:      policy,
	}, nil
}

// Predict runs up to the policy's attempt budget of sequential chat calls.
// A transport failure and a malformed or alias-keyed reply are equally
// retry-worthy, so each attempt covers the call and the normalization of its
// reply. On exhaustion the last underlying error is wrapped in a
// PREDICTION_ERROR.
func (p *Predictor) Predict(ctx context.Context, inputData map[string]any) (domain.Prediction, error) {
	if err := p.ensureConfig(ctx); err != nil {
		return domain.Prediction{}, newError(ErrorPrediction, "ssm_load_error", err)
	}

	messages, err := buildPredictionMessages(p.preamble, inputData)
	if err != nil {
		return domain.Prediction{}, newError(ErrorPrediction, "prompt_encode_error", err)
	}

	var out domain.Prediction
	err = p.policy.Do(ctx, func(ctx context.Context) error {
		raw, chatErr := p.llm.Chat(ctx, p.model, messages)
		if chatErr != nil {
			return fmt.Errorf("chat: %w", chatErr)
		}
		pred, normErr := NormalizePrediction(raw)
		if normErr != nil {
			return normErr
		}
		out = pred
		return nil
	})
	if err != nil {
		return domain.Prediction{}, newError(ErrorPrediction, "all_attempts_failed", err)
	}
	return out, nil
}

func (p *Predictor) ensureConfig(ctx context.Context) error {
	p.cacheMu.RLock()
	if p.cacheLoaded {
		p.cacheMu.RUnlock()
		return nil
	}
	p.cacheMu.RUnlock()

	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	if p.cacheLoaded {
		return nil
	}

	model, err := p.params.GetParameter(ctx, p.paramPrefix+"/config/openai_model")
	if err != nil {
		return fmt.Errorf("usecase: load model name: %w", err)
	}
	if strings.TrimSpace(model) == "" {
		return errors.New("usecase: model name parameter is empty")
	}

	// The preamble parameter is optional; deployments without it use the
	// built-in analyst prompt alone.
	preamble, err := p.params.GetParameter(ctx, p.paramPrefix+"/prompt_preamble")
	if err != nil {
		preamble = ""
	}

	p.model = strings.TrimSpace(model)
	p.preamble = preamble
	p.cacheLoaded = true
	return nil
}
