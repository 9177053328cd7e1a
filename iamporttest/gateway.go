// Package iamporttest provides an in-process fake of the iamport REST API
// for tests of code built on the iamport client.
package iamporttest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Customer is a registered billing key.
type Customer struct {
	CustomerUID string `json:"customer_uid"`
	CardName    string `json:"card_name"`
	CardNumber  string `json:"card_number"`
	Inserted    int64  `json:"inserted"`
	Updated     int64  `json:"updated"`
}

// Payment is a payment held by the fake gateway.
type Payment struct {
	ImpUID       string  `json:"imp_uid"`
	MerchantUID  string  `json:"merchant_uid"`
	CustomerUID  string  `json:"customer_uid,omitempty"`
	PayMethod    string  `json:"pay_method"`
	Name         string  `json:"name"`
	Amount       float64 `json:"amount"`
	CancelAmount float64 `json:"cancel_amount"`
	Currency     string  `json:"currency"`
	Status       string  `json:"status"`
	PaidAt       int64   `json:"paid_at"`
	CancelledAt  int64   `json:"cancelled_at"`
	CancelReason string  `json:"cancel_reason,omitempty"`
}

// Gateway is a fake iamport API server.
type Gateway struct {
	server *httptest.Server

	key    string
	secret string

	// TokenTTL is the lifetime of issued tokens.
	TokenTTL time.Duration
	// Now is the gateway clock.
	Now func() time.Time

	mu            sync.Mutex
	tokens        map[string]time.Time
	tokenRequests int
	customers     map[string]Customer
	payments      map[string]Payment
	order         []string
}

// NewGateway starts a fake gateway accepting the given key and secret.
// Callers must Close it.
func NewGateway(key, secret string) *Gateway {
	g := &Gateway{
		key:       key,
		secret:    secret,
		TokenTTL:  30 * time.Minute,
		Now:       time.Now,
		tokens:    make(map[string]time.Time),
		customers: make(map[string]Customer),
		payments:  make(map[string]Payment),
	}
	g.server = httptest.NewServer(g.router())

	return g
}

// URL returns the base URL of the gateway.
func (g *Gateway) URL() string {
	return g.server.URL
}

// Client returns an HTTP client for the gateway.
func (g *Gateway) Client() *http.Client {
	return g.server.Client()
}

// Close shuts the gateway down.
func (g *Gateway) Close() {
	g.server.Close()
}

// TokenRequests returns how many tokens were requested.
func (g *Gateway) TokenRequests() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.tokenRequests
}

// AddPayment stores p as if it had been made through the gateway.
func (g *Gateway) AddPayment(p Payment) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.putPayment(p)
}

// Customer returns the billing key stored under customerUID.
func (g *Gateway) Customer(customerUID string) (Customer, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, ok := g.customers[customerUID]
	return c, ok
}

func (g *Gateway) router() http.Handler {
	r := chi.NewRouter()
	r.Post("/users/getToken", g.getToken)

	r.Group(func(r chi.Router) {
		r.Use(g.authenticate)

		r.Post("/payments/cancel", g.cancelPayment)
		r.Get("/payments/status/{status}", g.paymentsByStatus)
		r.Get("/payments/{imp_uid}", g.payment)

		r.Post("/subscribe/customers/{customer_uid}", g.saveCustomer)
		r.Get("/subscribe/customers/{customer_uid}", g.customer)
		r.Delete("/subscribe/customers/{customer_uid}", g.removeCustomer)

		r.Post("/subscribe/payments/again", g.paymentAgain)
	})

	return r
}

func (g *Gateway) getToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ImpKey    string `json:"imp_key"`
		ImpSecret string `json:"imp_secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, -1, "invalid request body")
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.tokenRequests++
	if req.ImpKey != g.key || req.ImpSecret != g.secret {
		writeError(w, http.StatusUnauthorized, -1, "imp_key, imp_secret 파라메터가 누락되었습니다.")
		return
	}

	now := g.Now()
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	expiredAt := now.Add(g.TokenTTL)
	g.tokens[token] = expiredAt

	writeResponse(w, map[string]any{
		"access_token": token,
		"expired_at":   expiredAt.Unix(),
		"now":          now.Unix(),
	})
}

func (g *Gateway) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("Authorization")

		g.mu.Lock()
		expiredAt, ok := g.tokens[token]
		valid := ok && g.Now().Before(expiredAt)
		g.mu.Unlock()

		if !valid {
			writeError(w, http.StatusUnauthorized, -1, "Unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (g *Gateway) cancelPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ImpUID string   `json:"imp_uid"`
		Amount *float64 `json:"amount"`
		Reason string   `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, -1, "invalid request body")
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.payments[req.ImpUID]
	if !ok {
		writeError(w, http.StatusOK, 1, "취소할 결제건이 존재하지 않습니다.")
		return
	}
	if p.Status != "paid" {
		writeError(w, http.StatusOK, 1, "이미 전액취소된 주문입니다.")
		return
	}

	amount := p.Amount - p.CancelAmount
	if req.Amount != nil {
		amount = *req.Amount
	}
	if amount <= 0 || amount > p.Amount-p.CancelAmount {
		writeError(w, http.StatusOK, 1, "취소 가능 금액을 초과하였습니다.")
		return
	}

	p.CancelAmount += amount
	p.CancelReason = req.Reason
	if p.CancelAmount == p.Amount {
		p.Status = "cancelled"
		p.CancelledAt = g.Now().Unix()
	}
	g.putPayment(p)

	writeResponse(w, p)
}

func (g *Gateway) payment(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.payments[chi.URLParam(r, "imp_uid")]
	if !ok {
		writeError(w, http.StatusNotFound, 1, "존재하지 않는 결제정보입니다.")
		return
	}

	writeResponse(w, p)
}

func (g *Gateway) paymentsByStatus(w http.ResponseWriter, r *http.Request) {
	status := chi.URLParam(r, "status")
	page := intQuery(r, "page", 1)
	limit := intQuery(r, "limit", 20)

	g.mu.Lock()
	defer g.mu.Unlock()

	var matched []Payment
	for _, impUID := range g.order {
		p := g.payments[impUID]
		if status == "all" || p.Status == status {
			matched = append(matched, p)
		}
	}

	start := min((page-1)*limit, len(matched))
	end := min(start+limit, len(matched))

	next, previous := 0, 0
	if end < len(matched) {
		next = page + 1
	}
	if page > 1 {
		previous = page - 1
	}

	writeResponse(w, map[string]any{
		"total":    len(matched),
		"previous": previous,
		"next":     next,
		"list":     append([]Payment{}, matched[start:end]...),
	})
}

func (g *Gateway) saveCustomer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CardNumber string `json:"card_number"`
		Expiry     string `json:"expiry"`
		Birth      string `json:"birth"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, -1, "invalid request body")
		return
	}
	if req.CardNumber == "" || req.Expiry == "" || req.Birth == "" {
		writeError(w, http.StatusBadRequest, -1, "card_number, expiry, birth 파라메터는 필수입니다.")
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.Now().Unix()
	c := Customer{
		CustomerUID: chi.URLParam(r, "customer_uid"),
		CardName:    "테스트카드",
		CardNumber:  maskCardNumber(req.CardNumber),
		Inserted:    now,
		Updated:     now,
	}
	if old, ok := g.customers[c.CustomerUID]; ok {
		c.Inserted = old.Inserted
	}
	g.customers[c.CustomerUID] = c

	writeResponse(w, c)
}

func (g *Gateway) customer(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, ok := g.customers[chi.URLParam(r, "customer_uid")]
	if !ok {
		writeError(w, http.StatusNotFound, 1, "요청하신 customer_uid로 등록된 정보를 찾을 수 없습니다.")
		return
	}

	writeResponse(w, c)
}

func (g *Gateway) removeCustomer(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()

	customerUID := chi.URLParam(r, "customer_uid")
	c, ok := g.customers[customerUID]
	if !ok {
		writeError(w, http.StatusNotFound, 1, "요청하신 customer_uid로 등록된 정보를 찾을 수 없습니다.")
		return
	}
	delete(g.customers, customerUID)

	writeResponse(w, c)
}

func (g *Gateway) paymentAgain(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerUID string  `json:"customer_uid"`
		MerchantUID string  `json:"merchant_uid"`
		Amount      float64 `json:"amount"`
		Name        string  `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, -1, "invalid request body")
		return
	}
	if req.MerchantUID == "" {
		writeError(w, http.StatusBadRequest, -1, "invalid merchant_uid")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, -1, "invalid amount")
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.customers[req.CustomerUID]; !ok {
		writeError(w, http.StatusOK, 1, "등록되지 않은 customer_uid입니다.")
		return
	}

	p := Payment{
		ImpUID:      "imp_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		MerchantUID: req.MerchantUID,
		CustomerUID: req.CustomerUID,
		PayMethod:   "card",
		Name:        req.Name,
		Amount:      req.Amount,
		Currency:    "KRW",
		Status:      "paid",
		PaidAt:      g.Now().Unix(),
	}
	g.putPayment(p)

	writeResponse(w, p)
}

// putPayment must be called with mu held.
func (g *Gateway) putPayment(p Payment) {
	if _, ok := g.payments[p.ImpUID]; !ok {
		g.order = append(g.order, p.ImpUID)
	}
	g.payments[p.ImpUID] = p
}
