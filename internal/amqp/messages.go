package amqp

import (
	"encoding/json"
	"time"
)

// ProcessRequestMessage asks the worker to run the categorization and
// reconciliation pipeline for one CSV export. A zero Month/Year means
// auto-detection from the sheet.
type ProcessRequestMessage struct {
	CSVFile   string    `json:"csv_file"`
	Month     int       `json:"month,omitempty"`
	Year      int       `json:"year,omitempty"`
	AutoDate  bool      `json:"auto_date"`
	Shadow    bool      `json:"shadow"`
	Override  bool      `json:"override"`
	Timestamp time.Time `json:"timestamp"`
}

// NewProcessRequestMessage creates an auto-detecting process request for
// the given CSV file.
func NewProcessRequestMessage(csvFile string) *ProcessRequestMessage {
	return &ProcessRequestMessage{
		CSVFile:   csvFile,
		AutoDate:  true,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ProcessRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ProcessRequestMessageFromJSON creates a message from JSON bytes
func ProcessRequestMessageFromJSON(data []byte) (*ProcessRequestMessage, error) {
	var msg ProcessRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
