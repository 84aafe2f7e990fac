package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"risksync/internal/domain"
)

// Closed classification sets the model must choose from.
var (
	validRisks = map[string]bool{
		"ResourceConstraints": true,
		"TechDebt":            true,
		"VendorDelay":         true,
		"ScopeCreep":          true,
	}
	validIssues = map[string]bool{
		"Overtime":          true,
		"BudgetCut":         true,
		"EscalationPending": true,
		"RequirementGap":    true,
	}
)

// Alternate key names the model is known to emit instead of the canonical ones.
var predictionKeyAliases = map[string]string{
	"Burnout": "Burnout_Risk",
}

// NormalizePrediction repairs and validates one raw model reply. It is pure
// and total: any input yields either a valid Prediction or an error, so the
// caller's retry loop can treat a malformed reply like any other failed
// attempt. Repair steps: rename alias keys, strip currency/percent formatting
// from numeric fields ("$12,345" -> 12345, "±$1,200" -> 1200, "70%" -> 70),
// then check the closed classification sets and numeric ranges.
func NormalizePrediction(raw string) (domain.Prediction, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &fields); err != nil {
		return domain.Prediction{}, fmt.Errorf("normalize: parse model reply: %w", err)
	}

	for alias, canonical := range predictionKeyAliases {
		v, ok := fields[alias]
		if !ok {
			continue
		}
		if _, exists := fields[canonical]; !exists {
			fields[canonical] = v
		}
		delete(fields, alias)
	}

	risk, err := stringField(fields, "Risk", validRisks)
	if err != nil {
		return domain.Prediction{}, err
	}
	issues, err := stringField(fields, "Issues", validIssues)
	if err != nil {
		return domain.Prediction{}, err
	}
	cost, err := numericField(fields, "Forecasted_Cost")
	if err != nil {
		return domain.Prediction{}, err
	}
	deviation, err := numericField(fields, "Forecasted_Deviation")
	if err != nil {
		return domain.Prediction{}, err
	}
	burnout, err := numericField(fields, "Burnout_Risk")
	if err != nil {
		return domain.Prediction{}, err
	}
	if burnout < 0 || burnout > 100 {
		return domain.Prediction{}, fmt.Errorf("normalize: Burnout_Risk %v outside [0, 100]", burnout)
	}

	return domain.Prediction{
		Risk:                risk,
		Issues:              issues,
		ForecastedCost:      cost,
		ForecastedDeviation: deviation,
		BurnoutRisk:         burnout,
	}, nil
}

func stringField(fields map[string]any, key string, valid map[string]bool) (string, error) {
	v, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("normalize: missing field %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("normalize: field %q is not a string", key)
	}
	s = strings.TrimSpace(s)
	if !valid[s] {
		return "", fmt.Errorf("normalize: field %q has unknown value %q", key, s)
	}
	return s, nil
}

func numericField(fields map[string]any, key string) (float64, error) {
	v, ok := fields[key]
	if !ok {
		return 0, fmt.Errorf("normalize: missing field %q", key)
	}
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("normalize: field %q is not finite", key)
		}
		return n, nil
	case string:
		f, err := parseFormattedNumber(n)
		if err != nil {
			return 0, fmt.Errorf("normalize: field %q: %w", key, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("normalize: field %q has non-numeric type %T", key, v)
	}
}

// parseFormattedNumber strips currency and percent formatting from a value
// the model returned as a string. The "±" marker carries no usable sign, so
// only the magnitude is kept.
func parseFormattedNumber(s string) (float64, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", "±", "", "%", "", " ", "").Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return 0, errors.New("empty numeric string")
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	return f, nil
}
