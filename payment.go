package iamport

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// NewMerchantUID returns a fresh merchant_uid for a recurring charge.
func NewMerchantUID() string {
	return "mid_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CancelPayment cancels a payment, fully unless opts carries an amount.
// opts may set any field of the cancel endpoint (amount, reason, checksum,
// refund_holder, ...); its keys take precedence. tx may be nil when opts
// identifies the payment by imp_uid or merchant_uid.
func (c *Client) CancelPayment(ctx context.Context, tx Transaction, opts Params) (*TransactionResult, error) {
	form := Params{}
	if tx != nil {
		if impUID := tx.TransactionID(); impUID != "" {
			form["imp_uid"] = impUID
		}
	}
	form = opts.withDefaults(form)

	if !form.has("imp_uid") && !form.has("merchant_uid") {
		return nil, fmt.Errorf("cancel payment: imp_uid or merchant_uid is required: %w", ErrInvalidArgument)
	}

	result, err := c.Request(ctx, http.MethodPost, "/payments/cancel", form, true)
	if err != nil {
		return nil, err
	}

	return newTransactionResult(result)
}

// MakeUnauthPayment charges the card registered under customerUID.
func (c *Client) MakeUnauthPayment(
	ctx context.Context,
	customerUID, merchantUID string,
	amount int64,
	name string,
	opts Params,
) (*TransactionResult, error) {
	if customerUID == "" || merchantUID == "" {
		return nil, fmt.Errorf("make unauth payment: customer_uid and merchant_uid are required: %w", ErrInvalidArgument)
	}

	result, err := c.Request(ctx, http.MethodPost, "/subscribe/payments/again", opts.withDefaults(Params{
		"customer_uid": customerUID,
		"merchant_uid": merchantUID,
		"amount":       amount,
		"name":         name,
	}), true)
	if err != nil {
		return nil, err
	}

	return newTransactionResult(result)
}

// ScheduleUnauthPayment is not supported by this client.
func (c *Client) ScheduleUnauthPayment(
	ctx context.Context,
	customerUID, merchantUID string,
	amount int64,
	name string,
	opts Params,
) (*Result, error) {
	return nil, fmt.Errorf("schedule unauth payment: %w", ErrNotImplemented)
}

// UnscheduleUnauthPayment is not supported by this client.
func (c *Client) UnscheduleUnauthPayment(
	ctx context.Context,
	customerUID, merchantUID string,
	amount int64,
	name string,
	opts Params,
) (*Result, error) {
	return nil, fmt.Errorf("unschedule unauth payment: %w", ErrNotImplemented)
}

// Payment retrieves a single payment.
func (c *Client) Payment(ctx context.Context, impUID string) (*TransactionResult, error) {
	if impUID == "" {
		return nil, fmt.Errorf("payment: imp_uid is required: %w", ErrInvalidArgument)
	}

	result, err := c.Request(ctx, http.MethodGet, "/payments/"+url.PathEscape(impUID), nil, true)
	if err != nil {
		return nil, err
	}

	return newTransactionResult(result)
}

// PaymentsByStatus retrieves one page of payments with the given status.
func (c *Client) PaymentsByStatus(ctx context.Context, status PaymentStatus, params PageParams) (*PaymentList, error) {
	if status == "" {
		status = PaymentStatusAll
	}

	result, err := c.Request(
		ctx,
		http.MethodGet,
		"/payments/status/"+url.PathEscape(string(status)),
		params,
		true,
	)
	if err != nil {
		return nil, err
	}

	var list PaymentList
	if err := result.Decode(&list); err != nil {
		return nil, err
	}

	return &list, nil
}

// PaymentsByStatusIter returns an iterator over all payments with the given status.
func (c *Client) PaymentsByStatusIter(ctx context.Context, status PaymentStatus, params PageParams) iter.Seq2[TransactionResult, error] {
	return iterate(ctx, params, func(ctx context.Context, p PageParams) ([]TransactionResult, Pagination, error) {
		list, err := c.PaymentsByStatus(ctx, status, p)
		if err != nil {
			return nil, Pagination{}, err
		}
		return list.Payments, list.Pagination, nil
	})
}
