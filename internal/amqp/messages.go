package amqp

import (
	"encoding/json"
	"time"

	"finledger/internal/core"

	"github.com/shopspring/decimal"
)

// TransactionPostedType is the AMQP message type of TransactionPostedMessage.
const TransactionPostedType = "transaction.posted"

// TransactionPostedMessage announces a transaction written to the ledger by
// the recurring scheduler. It carries enough to update a downstream view
// without reading the database.
type TransactionPostedMessage struct {
	TransactionID string               `json:"transactionId"`
	RecurringID   string               `json:"recurringId,omitempty"`
	Type          core.TransactionType `json:"type"`
	Amount        decimal.Decimal      `json:"amount"`
	Date          core.Date            `json:"date"`
	AccountID     string               `json:"accountId"`
	ToAccountID   string               `json:"toAccountId,omitempty"`
	Description   string               `json:"description"`
	Timestamp     time.Time            `json:"timestamp"`
}

func NewTransactionPostedMessage(tx core.Transaction) *TransactionPostedMessage {
	return &TransactionPostedMessage{
		TransactionID: tx.ID,
		RecurringID:   tx.RecurringID,
		Type:          tx.Type,
		Amount:        tx.Amount,
		Date:          tx.Date,
		AccountID:     tx.AccountID,
		ToAccountID:   tx.ToAccountID,
		Description:   tx.Description,
		Timestamp:     time.Now(),
	}
}

func (m *TransactionPostedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionPostedMessageFromJSON(data []byte) (*TransactionPostedMessage, error) {
	var msg TransactionPostedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
