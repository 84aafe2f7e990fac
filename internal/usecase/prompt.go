package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"risksync/internal/domain"
)

// buildPredictionMessages assembles the chat payload for one row: the fixed
// analyst prompt (optionally preceded by an SSM-supplied preamble) plus the
// row's columns serialized as the user message.
func buildPredictionMessages(preamble string, inputData map[string]any) ([]domain.ChatMessage, error) {
	row, err := json.Marshal(inputData)
	if err != nil {
		return nil, fmt.Errorf("usecase: encode row data: %w", err)
	}

	system := buildAnalystPrompt()
	if p := strings.TrimSpace(preamble); p != "" {
		system = p + "\n\n" + system
	}

	return []domain.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: string(row)},
	}, nil
}

func buildAnalystPrompt() string {
	return strings.Join([]string{
		"Role:",
		"You are a delivery-risk analyst for professional-services projects.",
		"You receive one project row from a tracking spreadsheet, keyed by column header.",
		"",
		"Task:",
		"Assess the project's delivery risk from the row data and produce a forecast.",
		"",
		"Classification Rules:",
		classificationRules(),
		"",
		"Forecast Rules:",
		forecastRules(),
		"",
		"Output Contract:",
		outputContract(),
	}, "\n")
}

func classificationRules() string {
	return strings.Join([]string{
		"1) Risk must be exactly one of: ResourceConstraints, TechDebt, VendorDelay, ScopeCreep.",
		"2) Issues must be exactly one of: Overtime, BudgetCut, EscalationPending, RequirementGap.",
		"3) Understaffed or over-allocated teams indicate ResourceConstraints and Overtime.",
		"4) Slipping vendor milestones indicate VendorDelay and EscalationPending.",
		"5) Growing deliverable lists against a fixed ceiling indicate ScopeCreep and RequirementGap.",
		"6) Deferred maintenance or aging platforms indicate TechDebt.",
	}, "\n")
}

func forecastRules() string {
	return strings.Join([]string{
		"1) Forecasted_Cost is the projected total cost in USD, derived from the contract",
		"   ceiling, allocated hours, and burn rate in the row.",
		"2) Forecasted_Deviation is the signed USD delta versus budget; positive means over budget.",
		"3) Burnout_Risk is a 0-100 score for team burnout, driven by allocated hours,",
		"   overtime signals, and schedule pressure.",
	}, "\n")
}

func outputContract() string {
	return "Return a single JSON object and nothing else, with exactly these keys: " +
		"Risk (string), Issues (string), Forecasted_Cost (number), " +
		"Forecasted_Deviation (number), Burnout_Risk (number). " +
		"Numeric values must be plain numbers without currency symbols or percent signs."
}
