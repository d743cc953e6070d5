package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Change operations carried by TransactionChangedMessage.
const (
	OpCreated  = "created"
	OpUpdated  = "updated"
	OpDeleted  = "deleted"
	OpImported = "imported"
)

// TransactionChangedMessage announces that an owner's transactions changed.
// Consumers only need the owner to drop cached dashboard responses; the ids
// are informational.
type TransactionChangedMessage struct {
	OwnerID        string    `json:"user_id"`
	Operation      string    `json:"operation"`
	TransactionIDs []string  `json:"transaction_ids,omitempty"`
	Origin         string    `json:"origin,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewTransactionChangedMessage(ownerID, op string, ids ...string) *TransactionChangedMessage {
	return &TransactionChangedMessage{
		OwnerID:        ownerID,
		Operation:      op,
		TransactionIDs: ids,
		Timestamp:      time.Now().UTC(),
	}
}

func (m *TransactionChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionChangedMessageFromJSON decodes a message and rejects one
// without an owner.
func TransactionChangedMessageFromJSON(data []byte) (*TransactionChangedMessage, error) {
	var msg TransactionChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.OwnerID == "" {
		return nil, fmt.Errorf("message has no user_id")
	}
	return &msg, nil
}
