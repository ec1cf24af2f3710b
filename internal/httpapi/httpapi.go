package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"martpos/backend/internal/domain"
	"martpos/backend/internal/service"
	"martpos/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/auth/login", a.handleLogin)

	mux.HandleFunc("/products", a.requireAuth(a.handleProducts, domain.RoleCashier, domain.RoleAdmin))

	mux.HandleFunc("/pos/checkout", a.requireAuth(a.handleCheckout, domain.RoleCashier, domain.RoleAdmin))
	mux.HandleFunc("/pos/receipt", a.requireAuth(a.handleReceipt, domain.RoleCashier, domain.RoleAdmin))
	mux.HandleFunc("/pos/print", a.requireAuth(a.handlePrint, domain.RoleCashier, domain.RoleAdmin))

	mux.HandleFunc("/orders", a.requireAuth(a.handleOrders, domain.RoleCashier, domain.RoleAdmin))
	mux.HandleFunc("/orders/", a.requireAuth(a.handleOrderActions, domain.RoleCashier, domain.RoleAdmin))

	mux.HandleFunc("/refunds", a.requireAuth(a.handleRefunds, domain.RoleCashier, domain.RoleAdmin))
	mux.HandleFunc("/refunds/", a.requireAuth(a.handleRefundActions, domain.RoleCashier, domain.RoleAdmin))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		products, err := a.service.ListProducts(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"products": products})
	case http.MethodPost:
		var req domain.ProductCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		product, err := a.service.CreateProduct(r.Context(), req)
		if err != nil {
			if strings.Contains(err.Error(), "admin role required") {
				writeError(w, http.StatusForbidden, err)
				return
			}
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"product": product})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	order, err := a.service.PlaceOrder(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"order": order})
}

func (a *API) handleReceipt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req struct {
		OrderID string `json:"orderId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	receipt, err := a.service.BuildReceipt(r.Context(), req.OrderID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (a *API) handlePrint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req struct {
		OrderID string `json:"orderId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := a.service.PrintReceipt(r.Context(), req.OrderID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"printed": true})
}

func (a *API) handleOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	f, err := parseOrderFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.ListOrders(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleOrderActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, "/orders/"), "/")
	switch tail {
	case "":
		writeError(w, http.StatusNotFound, errors.New("order id required"))
	case "daily-report":
		a.handleDailyReport(w, r)
	case "dashboard-stats":
		a.handleDashboardStats(w, r)
	default:
		order, err := a.service.GetOrder(r.Context(), tail)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"order": order})
	}
}

func (a *API) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := domain.ReportQuery{
		Date:         strings.TrimSpace(query.Get("date")),
		Dates:        query["dates"],
		StartDate:    strings.TrimSpace(query.Get("startDate")),
		EndDate:      strings.TrimSpace(query.Get("endDate")),
		CashierID:    strings.TrimSpace(query.Get("cashierId")),
		WithDiscount: parseBool(query.Get("withDiscount")),
		Page:         parsePositiveLimit(query.Get("page"), 1, 0),
		Limit:        parsePositiveLimit(query.Get("limit"), 20, 100),
	}

	report, err := a.service.DailyReport(r.Context(), q)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.service.DashboardStats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleRefunds(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		page := parsePositiveLimit(r.URL.Query().Get("page"), 1, 0)
		limit := parsePositiveLimit(r.URL.Query().Get("limit"), 20, 100)
		resp, err := a.service.ListRefunds(r.Context(), page, limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodPost:
		var req domain.RefundRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		refund, err := a.service.CreateRefund(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"refund": refund})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleRefundActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, "/refunds/"), "/")
	if tail == "" {
		writeError(w, http.StatusNotFound, errors.New("refund id required"))
		return
	}

	if orderID, ok := strings.CutPrefix(tail, "order/"); ok {
		refunds, err := a.service.ListRefundsByOrder(r.Context(), strings.Trim(orderID, "/"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"refunds": refunds})
		return
	}

	refund, err := a.service.GetRefund(r.Context(), tail)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"refund": refund})
}

func parseOrderFilter(r *http.Request) (domain.OrderFilter, error) {
	query := r.URL.Query()
	f := domain.OrderFilter{
		CashierID:    strings.TrimSpace(query.Get("cashierId")),
		OrderID:      strings.TrimSpace(query.Get("orderId")),
		WithDiscount: parseBool(query.Get("withDiscount")),
		Page:         parsePositiveLimit(query.Get("page"), 1, 0),
		Limit:        parsePositiveLimit(query.Get("limit"), 20, 100),
	}

	if raw := strings.TrimSpace(query.Get("startDate")); raw != "" {
		day, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return f, errors.New("invalid startDate, expected YYYY-MM-DD")
		}
		f.Start = day.UTC()
	}
	if raw := strings.TrimSpace(query.Get("endDate")); raw != "" {
		day, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return f, errors.New("invalid endDate, expected YYYY-MM-DD")
		}
		f.End = day.UTC().AddDate(0, 0, 1)
	}

	for _, raw := range query["status"] {
		for _, st := range strings.Split(raw, ",") {
			st = strings.ToUpper(strings.TrimSpace(st))
			if st != "" {
				f.Statuses = append(f.Statuses, st)
			}
		}
	}
	return f, nil
}

func parseBool(raw string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && v
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

// writeServiceError maps store sentinel errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrValidation):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, store.ErrInsufficientStock):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
	}
	writeJSON(w, status, map[string]any{
		"message": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
