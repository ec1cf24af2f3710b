package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"
	"time"

	"martpos/backend/internal/cache"
	"martpos/backend/internal/domain"
	"martpos/backend/internal/printer"
	"martpos/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const dashboardStatsKey = "dashboard:stats"

type Service struct {
	repo     store.Repository
	stats    cache.StatsCache
	statsTTL time.Duration
	printer  *printer.Printer
}

func New(repo store.Repository, stats cache.StatsCache, statsTTL time.Duration, receiptPrinter *printer.Printer) *Service {
	if stats == nil {
		stats = cache.NoopStatsCache{}
	}
	if statsTTL <= 0 {
		statsTTL = 30 * time.Second
	}

	return &Service{
		repo:     repo,
		stats:    stats,
		statsTTL: statsTTL,
		printer:  receiptPrinter,
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (*domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Price < 1 {
		return nil, fmt.Errorf("%w: product needs a name and a positive price", store.ErrValidation)
	}
	if req.Quantity < 0 || req.MinQuantity < 0 || req.CostPrice < 0 {
		return nil, fmt.Errorf("%w: product quantities and cost must not be negative", store.ErrValidation)
	}

	p := &domain.Product{
		Name:        req.Name,
		Price:       req.Price,
		CostPrice:   req.CostPrice,
		Quantity:    req.Quantity,
		MinQuantity: req.MinQuantity,
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) PlaceOrder(ctx context.Context, req domain.CheckoutRequest) (*domain.Order, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("authentication required")
	}
	user, err := s.repo.GetUserByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: order has no items", store.ErrValidation)
	}
	if req.Discount < 0 || req.Tax < 0 {
		return nil, fmt.Errorf("%w: discount and tax must not be negative", store.ErrValidation)
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = "cash"
	}
	if !isSupportedPaymentMethod(req.PaymentMethod) {
		return nil, fmt.Errorf("%w: unsupported payment method %s", store.ErrValidation, req.PaymentMethod)
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	subtotal := int64(0)
	for _, it := range req.Items {
		if it.Quantity < 1 {
			return nil, fmt.Errorf("%w: item quantity must be positive", store.ErrValidation)
		}
		product, err := s.repo.GetProductByID(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		// prices come from the catalogue, never from the client
		lineSubtotal := product.Price * it.Quantity
		items = append(items, domain.OrderItem{
			ProductID: product.ID,
			Quantity:  it.Quantity,
			Price:     product.Price,
			Subtotal:  lineSubtotal,
		})
		subtotal += lineSubtotal
	}

	if req.Discount > subtotal {
		return nil, fmt.Errorf("%w: discount %d exceeds subtotal %d", store.ErrValidation, req.Discount, subtotal)
	}
	total := subtotal - req.Discount + req.Tax
	if req.TotalAmount != 0 && req.TotalAmount != total {
		return nil, fmt.Errorf("%w: submitted total %d does not match computed total %d",
			store.ErrValidation, req.TotalAmount, total)
	}

	order := &domain.Order{
		UserID:        user.ID,
		TotalAmount:   total,
		Discount:      req.Discount,
		Tax:           req.Tax,
		PaymentMethod: req.PaymentMethod,
		Items:         items,
	}
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	log.Printf("[service] order %s created by %s total=%d items=%d", order.ID, user.Username, total, len(items))
	return s.repo.GetOrderByID(ctx, order.ID)
}

func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.repo.GetOrderByID(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context, f domain.OrderFilter) (domain.OrderListResponse, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}

	orders, total, err := s.repo.ListOrders(ctx, f)
	if err != nil {
		return domain.OrderListResponse{}, err
	}

	// aggregates always cover the full match set, not the current page
	agg, err := s.repo.AggregateOrders(ctx, f, isRefundStatusFilter(f.Statuses))
	if err != nil {
		return domain.OrderListResponse{}, err
	}

	return domain.OrderListResponse{
		Orders:     orders,
		Pagination: buildPagination(f.Page, f.Limit, total),
		Aggregates: agg,
	}, nil
}

func (s *Service) DailyReport(ctx context.Context, q domain.ReportQuery) (domain.DailyReportResponse, error) {
	start, end, err := resolveReportRange(q, time.Now().UTC())
	if err != nil {
		return domain.DailyReportResponse{}, err
	}

	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 20
	}
	f := domain.OrderFilter{
		Start:        start,
		End:          end,
		CashierID:    q.CashierID,
		WithDiscount: q.WithDiscount,
		Page:         q.Page,
		Limit:        q.Limit,
	}

	orders, total, err := s.repo.ListOrders(ctx, f)
	if err != nil {
		return domain.DailyReportResponse{}, err
	}
	agg, err := s.repo.AggregateOrders(ctx, f, false)
	if err != nil {
		return domain.DailyReportResponse{}, err
	}

	return domain.DailyReportResponse{
		StartDate:  start.Format("2006-01-02"),
		EndDate:    end.AddDate(0, 0, -1).Format("2006-01-02"),
		Aggregates: agg,
		Orders:     orders,
		Pagination: buildPagination(q.Page, q.Limit, total),
	}, nil
}

// resolveReportRange picks the reporting window. Repeated dates span the
// earliest to the latest; a single date or an explicit start/end pair
// cover whole days; the default is today. End is exclusive.
func resolveReportRange(q domain.ReportQuery, now time.Time) (time.Time, time.Time, error) {
	parse := func(value string) (time.Time, error) {
		day, err := time.Parse("2006-01-02", strings.TrimSpace(value))
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: invalid date %q", store.ErrValidation, value)
		}
		return day.UTC(), nil
	}

	if len(q.Dates) > 0 {
		var earliest, latest time.Time
		for i, raw := range q.Dates {
			day, err := parse(raw)
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
			if i == 0 || day.Before(earliest) {
				earliest = day
			}
			if i == 0 || day.After(latest) {
				latest = day
			}
		}
		return earliest, latest.AddDate(0, 0, 1), nil
	}

	if q.Date != "" {
		day, err := parse(q.Date)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		return day, day.AddDate(0, 0, 1), nil
	}

	if q.StartDate != "" && q.EndDate != "" {
		start, err := parse(q.StartDate)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end, err := parse(q.EndDate)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		if end.Before(start) {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: end date before start date", store.ErrValidation)
		}
		return start, end.AddDate(0, 0, 1), nil
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return today, today.AddDate(0, 0, 1), nil
}

func (s *Service) DashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	if cached, hit, err := s.stats.Get(ctx, dashboardStatsKey); err != nil {
		log.Printf("[service] WARN: stats cache read failed: %v", err)
	} else if hit {
		return *cached, nil
	}

	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	agg, err := s.repo.AggregateOrders(ctx, domain.OrderFilter{Start: midnight}, false)
	if err != nil {
		return domain.DashboardStats{}, err
	}

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	lowStock := int64(0)
	for _, p := range products {
		if p.Quantity <= p.MinQuantity {
			lowStock++
		}
	}

	cashiers, err := s.repo.CountActiveCashiers(ctx, midnight)
	if err != nil {
		return domain.DashboardStats{}, err
	}

	stats := domain.DashboardStats{
		DailySales:     agg.TotalSales,
		TotalOrders:    agg.TotalOrders,
		LowStockCount:  lowStock,
		ActiveCashiers: cashiers,
	}
	if err := s.stats.Set(ctx, dashboardStatsKey, &stats, s.statsTTL); err != nil {
		log.Printf("[service] WARN: stats cache write failed: %v", err)
	}
	return stats, nil
}

func (s *Service) CreateRefund(ctx context.Context, req domain.RefundRequest) (*domain.Refund, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("authentication required")
	}
	if req.OrderID == "" {
		return nil, fmt.Errorf("%w: orderId is required", store.ErrValidation)
	}

	lines := make([]domain.RefundLine, 0, len(req.Items))
	for _, line := range req.Items {
		if line.Quantity < 1 {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: refund has no refundable items", store.ErrValidation)
	}

	refund, err := s.repo.CreateRefund(ctx, req.OrderID, actor.ID, strings.TrimSpace(req.Reason), lines)
	if err != nil {
		return nil, err
	}

	log.Printf("[service] refund %s created for order %s by %s total=%d",
		refund.ID, refund.OrderID, actor.Username, refund.TotalAmount)
	return s.repo.GetRefundByID(ctx, refund.ID)
}

func (s *Service) GetRefund(ctx context.Context, id string) (*domain.Refund, error) {
	return s.repo.GetRefundByID(ctx, id)
}

func (s *Service) ListRefunds(ctx context.Context, page, limit int) (domain.RefundListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	refunds, total, err := s.repo.ListRefunds(ctx, page, limit)
	if err != nil {
		return domain.RefundListResponse{}, err
	}
	return domain.RefundListResponse{
		Refunds:    refunds,
		Pagination: buildPagination(page, limit, total),
	}, nil
}

func (s *Service) ListRefundsByOrder(ctx context.Context, orderID string) ([]domain.Refund, error) {
	return s.repo.ListRefundsByOrder(ctx, orderID)
}

func (s *Service) BuildReceipt(ctx context.Context, orderID string) (domain.ReceiptResponse, error) {
	order, err := s.repo.GetOrderByID(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.ReceiptResponse{}, err
	}

	lines := receiptLines(order)
	return domain.ReceiptResponse{
		OrderID:      order.ID,
		EscposBase64: base64.StdEncoding.EncodeToString(escposPayload(lines)),
		PreviewText:  strings.Join(lines, "\n"),
		FileName:     fmt.Sprintf("receipt-%s.bin", order.ID),
	}, nil
}

func (s *Service) PrintReceipt(ctx context.Context, orderID string) error {
	if s.printer == nil {
		return fmt.Errorf("receipt printer not configured")
	}
	order, err := s.repo.GetOrderByID(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return err
	}
	return s.printer.Print(ctx, order.ID, escposPayload(receiptLines(order)))
}

func receiptLines(order *domain.Order) []string {
	lines := []string{
		"MartPOS",
		"========================",
		"Order: " + order.ID,
		"Cashier: " + order.Cashier,
		"Date: " + order.CreatedAt.Format("2006-01-02 15:04:05"),
		"------------------------",
	}
	for _, item := range order.Items {
		lines = append(lines, fmt.Sprintf("%s x%d", item.ProductName, item.Quantity))
		lines = append(lines, fmt.Sprintf("  %d", item.Subtotal))
	}
	lines = append(lines,
		"------------------------",
		fmt.Sprintf("Discount : %d", order.Discount),
		fmt.Sprintf("Tax      : %d", order.Tax),
		fmt.Sprintf("Total    : %d", order.TotalAmount),
	)
	if order.RefundedAmount > 0 {
		lines = append(lines, fmt.Sprintf("Refunded : %d", order.RefundedAmount))
	}
	lines = append(lines,
		"========================",
		"Thank you",
		"",
	)
	return lines
}

func escposPayload(lines []string) []byte {
	payload := []byte{0x1b, 0x40}
	for _, line := range lines {
		payload = append(payload, []byte(line)...)
		payload = append(payload, '\n')
	}
	payload = append(payload, []byte{0x1d, 0x56, 0x41, 0x10}...)
	return payload
}

// isRefundStatusFilter reports whether every requested status is a
// refund state, which switches reporting to refund-amount aggregates.
func isRefundStatusFilter(statuses []string) bool {
	if len(statuses) == 0 {
		return false
	}
	for _, st := range statuses {
		if st != domain.OrderStatusRefunded && st != domain.OrderStatusPartiallyRefunded {
			return false
		}
	}
	return true
}

func buildPagination(page int, limit int, total int64) domain.Pagination {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return domain.Pagination{
		Page:       page,
		Limit:      limit,
		TotalRows:  total,
		TotalPages: totalPages,
	}
}

func isSupportedPaymentMethod(method string) bool {
	switch method {
	case "cash", "card", "qris":
		return true
	}
	return false
}
