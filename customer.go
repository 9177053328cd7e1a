package iamport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
)

// CardNumber supplies a validated card number. See package card.
type CardNumber interface {
	CardNumber() string
}

// CardExpiry supplies a validated card expiry in YYYY-MM form. See package card.
type CardExpiry interface {
	CardExpiry() string
}

// isNil reports whether v is nil or a nil pointer held in an interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

func customerPath(customerUID string) string {
	return "/subscribe/customers/" + url.PathEscape(customerUID)
}

// SaveUnauthPaymentCustomer registers a card under customerUID so it can be
// charged later with [Client.MakeUnauthPayment].
// birth is the holder's YYMMDD birth date, or the business registration
// number for corporate cards. pwd2digit is optional.
func (c *Client) SaveUnauthPaymentCustomer(
	ctx context.Context,
	customerUID string,
	number CardNumber,
	expiry CardExpiry,
	birth string,
	pwd2digit string,
	opts Params,
) (*Result, error) {
	if customerUID == "" {
		return nil, fmt.Errorf("save customer: customer_uid is required: %w", ErrInvalidArgument)
	}
	if isNil(number) || isNil(expiry) {
		return nil, fmt.Errorf("save customer: card number and expiry are required: %w", ErrInvalidArgument)
	}

	cardNumber, cardExpiry := number.CardNumber(), expiry.CardExpiry()
	if cardNumber == "" || cardExpiry == "" {
		return nil, fmt.Errorf("save customer: card number and expiry must not be empty: %w", ErrInvalidArgument)
	}

	form := Params{
		"card_number": cardNumber,
		"expiry":      cardExpiry,
		"birth":       birth,
	}
	if pwd2digit != "" {
		form["pwd_2digit"] = pwd2digit
	}

	return c.Request(ctx, http.MethodPost, customerPath(customerUID), opts.withDefaults(form), true)
}

// UnauthPaymentCustomer retrieves the card registered under customerUID.
func (c *Client) UnauthPaymentCustomer(ctx context.Context, customerUID string) (*Result, error) {
	if customerUID == "" {
		return nil, fmt.Errorf("customer: customer_uid is required: %w", ErrInvalidArgument)
	}

	return c.Request(ctx, http.MethodGet, customerPath(customerUID), nil, true)
}

// RemoveUnauthPaymentCustomer deletes the card registered under customerUID.
func (c *Client) RemoveUnauthPaymentCustomer(ctx context.Context, customerUID string) (*Result, error) {
	if customerUID == "" {
		return nil, fmt.Errorf("remove customer: customer_uid is required: %w", ErrInvalidArgument)
	}

	return c.Request(ctx, http.MethodDelete, customerPath(customerUID), nil, true)
}
