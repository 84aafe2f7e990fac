package domain

// RowMessage is one spreadsheet row delivered by the sync queue. It is
// immutable once enqueued; the queue may redeliver it if processing fails.
type RowMessage struct {
	SpreadsheetID     string         `json:"spreadsheetId"`
	SheetRange        string         `json:"sheetRange"`
	RowIndex          int            `json:"rowIndex"`
	ProjectIdentifier string         `json:"projectIdentifier"`
	SyncTimestamp     string         `json:"syncTimestamp"`
	InputData         map[string]any `json:"inputData"`
	OwnerID           string         `json:"ownerId,omitempty"`
	ConnectionID      string         `json:"connectionId,omitempty"`
}
