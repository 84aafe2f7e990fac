package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"risksync/internal/domain"
)

// ParseRowMessage parses one raw queue message body and validates it against
// the RowMessage shape. Validation failures are not transient, so callers
// must not retry them; the first violated field is reported in the error
// reason. Some deployments send the owner namespace as connectionId rather
// than ownerId; when only connectionId is present it is folded into OwnerID.
func ParseRowMessage(body string) (domain.RowMessage, error) {
	var msg domain.RowMessage
	dec := json.NewDecoder(bytes.NewBufferString(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&msg); err != nil {
		return domain.RowMessage{}, newError(ErrorValidation, "invalid_json", err)
	}

	if strings.TrimSpace(msg.SpreadsheetID) == "" {
		return domain.RowMessage{}, newError(ErrorValidation, "missing_spreadsheet_id", nil)
	}
	if strings.TrimSpace(msg.SheetRange) == "" {
		return domain.RowMessage{}, newError(ErrorValidation, "missing_sheet_range", nil)
	}
	if msg.RowIndex <= 0 {
		return domain.RowMessage{}, newError(ErrorValidation, "invalid_row_index",
			fmt.Errorf("rowIndex must be a positive integer, got %d", msg.RowIndex))
	}
	if strings.TrimSpace(msg.ProjectIdentifier) == "" {
		return domain.RowMessage{}, newError(ErrorValidation, "missing_project_identifier", nil)
	}
	if _, err := time.Parse(time.RFC3339, msg.SyncTimestamp); err != nil {
		return domain.RowMessage{}, newError(ErrorValidation, "invalid_sync_timestamp", err)
	}
	if msg.InputData == nil {
		return domain.RowMessage{}, newError(ErrorValidation, "missing_input_data", nil)
	}

	if msg.OwnerID == "" {
		msg.OwnerID = msg.ConnectionID
	}
	return msg, nil
}
