package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AlertKind names the detector that produced an alert.
type AlertKind string

const (
	AlertSubscription AlertKind = "subscription"
	AlertUpcoming     AlertKind = "upcoming_payment"
	AlertAnomaly      AlertKind = "anomaly"
	AlertBudget       AlertKind = "budget"
)

// AlertMessage is one spending finding fanned out to notification
// consumers. Subject is the merchant, item or category the finding is about.
type AlertMessage struct {
	ID        string    `json:"id"`
	Kind      AlertKind `json:"kind"`
	Severity  string    `json:"severity"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Amount    float64   `json:"amount"`
	Date      string    `json:"date,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewAlertMessage(kind AlertKind, severity, subject, message string, amount float64) *AlertMessage {
	return &AlertMessage{
		ID:        uuid.NewString(),
		Kind:      kind,
		Severity:  severity,
		Subject:   subject,
		Message:   message,
		Amount:    amount,
		Timestamp: time.Now(),
	}
}

func (m *AlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func AlertMessageFromJSON(data []byte) (*AlertMessage, error) {
	var msg AlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
