package iamport

import (
	"encoding/json"
	"fmt"
)

// Transaction identifies a payment known to the gateway.
type Transaction interface {
	// TransactionID returns the gateway assigned imp_uid.
	TransactionID() string
}

// ImpUID is a gateway assigned transaction identifier.
type ImpUID string

// TransactionID implements [Transaction].
func (u ImpUID) TransactionID() string {
	return string(u)
}

// PaymentStatus defines the status of a payment.
type PaymentStatus string

const (
	PaymentStatusAll       PaymentStatus = "all"
	PaymentStatusReady     PaymentStatus = "ready"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// TransactionResult is a read-only view of a payment as reported by the gateway.
type TransactionResult struct {
	// ImpUID is the gateway assigned identifier.
	ImpUID string `json:"imp_uid"`
	// MerchantUID is the merchant assigned identifier.
	MerchantUID string `json:"merchant_uid"`
	// CustomerUID is set for payments charged to a registered card.
	CustomerUID string `json:"customer_uid,omitempty"`
	PayMethod   string `json:"pay_method,omitempty"`
	Channel     string `json:"channel,omitempty"`
	PGProvider  string `json:"pg_provider,omitempty"`
	PGTID       string `json:"pg_tid,omitempty"`
	ApplyNum    string `json:"apply_num,omitempty"`
	CardCode    string `json:"card_code,omitempty"`
	CardName    string `json:"card_name,omitempty"`
	// CardNumber is masked by the gateway.
	CardNumber string `json:"card_number,omitempty"`
	CardQuota  int    `json:"card_quota,omitempty"`
	// Name is the order name shown to the buyer.
	Name         string        `json:"name,omitempty"`
	Amount       float64       `json:"amount"`
	CancelAmount float64       `json:"cancel_amount"`
	Currency     string        `json:"currency,omitempty"`
	BuyerName    string        `json:"buyer_name,omitempty"`
	BuyerEmail   string        `json:"buyer_email,omitempty"`
	BuyerTel     string        `json:"buyer_tel,omitempty"`
	Status       PaymentStatus `json:"status"`
	StartedAt    UnixTime      `json:"started_at"`
	PaidAt       UnixTime      `json:"paid_at"`
	FailedAt     UnixTime      `json:"failed_at"`
	CancelledAt  UnixTime      `json:"cancelled_at"`
	FailReason   string        `json:"fail_reason,omitempty"`
	CancelReason string        `json:"cancel_reason,omitempty"`
	ReceiptURL   string        `json:"receipt_url,omitempty"`

	raw map[string]any
}

// TransactionID implements [Transaction], so a result can be cancelled directly.
// A nil result has no identifier.
func (t *TransactionResult) TransactionID() string {
	if t == nil {
		return ""
	}

	return t.ImpUID
}

// Paid reports whether the payment went through.
func (t *TransactionResult) Paid() bool {
	return t.Status == PaymentStatusPaid
}

// Raw returns every field the gateway sent, including ones without a typed accessor.
func (t *TransactionResult) Raw() map[string]any {
	return t.raw
}

// UnmarshalJSON implements the [json.Unmarshaler] interface.
func (t *TransactionResult) UnmarshalJSON(data []byte) error {
	type plain TransactionResult

	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if err := json.Unmarshal(data, &p.raw); err != nil {
		return err
	}

	*t = TransactionResult(p)
	return nil
}

// newTransactionResult projects the response member of result.
func newTransactionResult(result *Result) (*TransactionResult, error) {
	var t TransactionResult
	if err := result.Decode(&t); err != nil {
		return nil, fmt.Errorf("transaction result: %w", err)
	}

	return &t, nil
}

// PaymentList is one page of payments.
type PaymentList struct {
	Pagination
	Payments []TransactionResult `json:"list"`
}
