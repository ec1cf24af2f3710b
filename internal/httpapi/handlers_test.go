package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"martpos/backend/internal/domain"
	"martpos/backend/internal/service"
	"martpos/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager
// and real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) http.Handler {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, nil, time.Second, nil)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)
	return New(svc, auth, "*").Handler()
}

func login(t *testing.T, handler http.Handler, username string) string {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{
		"username": username,
		"password": "password",
	})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d (body: %s)", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.Token == "" {
		t.Fatalf("expected token in login response")
	}
	return resp.Token
}

func doJSON(t *testing.T, handler http.Handler, method string, path string, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func checkout(t *testing.T, handler http.Handler, token string, items []map[string]any) domain.Order {
	t.Helper()

	rec := doJSON(t, handler, http.MethodPost, "/pos/checkout", token, map[string]any{"items": items})
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout failed: %d (body: %s)", rec.Code, rec.Body.String())
	}
	var resp struct {
		Order domain.Order `json:"order"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode checkout response: %v", err)
	}
	return resp.Order
}

func TestHandleHealth(t *testing.T) {
	handler := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	handler := newTestAPI(t)

	rec := doJSON(t, handler, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "admin",
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["message"] == nil {
		t.Fatalf("expected message in error body, got %v", body)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	handler := newTestAPI(t)

	rec := doJSON(t, handler, http.MethodGet, "/orders", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestCheckoutCreatesOrder(t *testing.T) {
	handler := newTestAPI(t)
	token := login(t, handler, "cashier")

	order := checkout(t, handler, token, []map[string]any{
		{"productId": "prd-coffee", "quantity": 2},
	})
	if order.Status != domain.OrderStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", order.Status)
	}
	if order.TotalAmount != 30000 {
		t.Fatalf("expected total 30000, got %d", order.TotalAmount)
	}
	if len(order.Items) != 1 || order.Items[0].AvailableQuantity != 2 {
		t.Fatalf("unexpected items: %+v", order.Items)
	}
}

func TestCheckoutInsufficientStockConflicts(t *testing.T) {
	handler := newTestAPI(t)
	token := login(t, handler, "cashier")

	rec := doJSON(t, handler, http.MethodPost, "/pos/checkout", token, map[string]any{
		"items": []map[string]any{{"productId": "prd-sugar", "quantity": 9999}},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestRefundLifecycleOverHTTP(t *testing.T) {
	handler := newTestAPI(t)
	token := login(t, handler, "cashier")

	order := checkout(t, handler, token, []map[string]any{
		{"productId": "prd-tea", "quantity": 3},
	})

	rec := doJSON(t, handler, http.MethodPost, "/refunds", token, map[string]any{
		"orderId": order.ID,
		"reason":  "customer returned items",
		"items": []map[string]any{
			{"orderItemId": order.Items[0].ID, "quantity": 2},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created struct {
		Refund domain.Refund `json:"refund"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode refund: %v", err)
	}
	if created.Refund.TotalAmount != 20000 {
		t.Fatalf("expected refund total 20000, got %d", created.Refund.TotalAmount)
	}

	// over-refund is rejected with the availability detail
	rec = doJSON(t, handler, http.MethodPost, "/refunds", token, map[string]any{
		"orderId": order.ID,
		"items": []map[string]any{
			{"orderItemId": order.Items[0].ID, "quantity": 2},
		},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on over-refund, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "exceeds available") {
		t.Fatalf("expected availability detail in error, got %s", rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/orders/"+order.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var fetched struct {
		Order domain.Order `json:"order"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&fetched); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	if fetched.Order.Status != domain.OrderStatusPartiallyRefunded {
		t.Fatalf("expected PARTIALLY_REFUNDED, got %s", fetched.Order.Status)
	}
	if fetched.Order.RefundedAmount != 20000 {
		t.Fatalf("expected refunded amount 20000, got %d", fetched.Order.RefundedAmount)
	}

	rec = doJSON(t, handler, http.MethodGet, "/refunds/order/"+order.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var byOrder struct {
		Refunds []domain.Refund `json:"refunds"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&byOrder); err != nil {
		t.Fatalf("decode refunds: %v", err)
	}
	if len(byOrder.Refunds) != 1 {
		t.Fatalf("expected 1 refund for order, got %d", len(byOrder.Refunds))
	}

	rec = doJSON(t, handler, http.MethodGet, "/refunds/"+created.Refund.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestListOrdersWithStatusFilter(t *testing.T) {
	handler := newTestAPI(t)
	token := login(t, handler, "cashier")

	a := checkout(t, handler, token, []map[string]any{{"productId": "prd-tea", "quantity": 5}})
	checkout(t, handler, token, []map[string]any{{"productId": "prd-coffee", "quantity": 1}})

	rec := doJSON(t, handler, http.MethodPost, "/refunds", token, map[string]any{
		"orderId": a.ID,
		"items":   []map[string]any{{"orderItemId": a.Items[0].ID, "quantity": 5}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("refund failed: %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/orders?status=REFUNDED", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp domain.OrderListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(resp.Orders) != 1 {
		t.Fatalf("expected 1 refunded order, got %d", len(resp.Orders))
	}
	if resp.Aggregates.TotalSales != 50000 {
		t.Fatalf("expected refund-mode sales 50000, got %d", resp.Aggregates.TotalSales)
	}
}

func TestDailyReportAndDashboardRoutesAreNotOrderIDs(t *testing.T) {
	handler := newTestAPI(t)
	token := login(t, handler, "cashier")

	checkout(t, handler, token, []map[string]any{{"productId": "prd-tea", "quantity": 1}})

	today := time.Now().UTC().Format("2006-01-02")
	rec := doJSON(t, handler, http.MethodGet, fmt.Sprintf("/orders/daily-report?date=%s", today), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("daily report: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var report domain.DailyReportResponse
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Aggregates.TotalSales != 10000 {
		t.Fatalf("expected sales 10000, got %d", report.Aggregates.TotalSales)
	}

	rec = doJSON(t, handler, http.MethodGet, "/orders/dashboard-stats", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard stats: expected 200, got %d", rec.Code)
	}
	var stats domain.DashboardStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalOrders != 1 {
		t.Fatalf("expected 1 order today, got %d", stats.TotalOrders)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	handler := newTestAPI(t)
	token := login(t, handler, "cashier")

	rec := doJSON(t, handler, http.MethodGet, "/orders/ord-missing", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCreateProductForbiddenForCashier(t *testing.T) {
	handler := newTestAPI(t)
	token := login(t, handler, "cashier")

	rec := doJSON(t, handler, http.MethodPost, "/products", token, map[string]any{
		"name":  "Milk",
		"price": 12000,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	adminToken := login(t, handler, "admin")
	rec = doJSON(t, handler, http.MethodPost, "/products", adminToken, map[string]any{
		"name":     "Milk",
		"price":    12000,
		"quantity": 5,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestReceiptEndpointReturnsPayload(t *testing.T) {
	handler := newTestAPI(t)
	token := login(t, handler, "cashier")

	order := checkout(t, handler, token, []map[string]any{{"productId": "prd-coffee", "quantity": 1}})

	rec := doJSON(t, handler, http.MethodPost, "/pos/receipt", token, map[string]any{"orderId": order.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var receipt domain.ReceiptResponse
	if err := json.NewDecoder(rec.Body).Decode(&receipt); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if receipt.EscposBase64 == "" || !strings.Contains(receipt.PreviewText, "Coffee") {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
}
