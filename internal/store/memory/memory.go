// Package memory implements store.Repository with in-process maps. It
// backs unit tests and local development without Postgres.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"martpos/backend/internal/domain"
	"martpos/backend/internal/store"
	"martpos/backend/internal/xid"
)

type Store struct {
	mu sync.Mutex

	// AllowOversell permits checkouts to drive stock negative.
	AllowOversell bool

	users    map[string]*domain.User
	products map[string]*domain.Product
	orders   map[string]*domain.Order
	refunds  map[string]*domain.Refund

	orderSeq  []string
	refundSeq []string
}

var _ store.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		users:    make(map[string]*domain.User),
		products: make(map[string]*domain.Product),
		orders:   make(map[string]*domain.Order),
		refunds:  make(map[string]*domain.Refund),
	}
}

// NewSeeded returns a store pre-loaded with one admin, one cashier and
// a small product catalogue. Both accounts use the password "password".
func NewSeeded() *Store {
	s := New()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	now := time.Now()
	s.users["usr-admin"] = &domain.User{
		ID: "usr-admin", Username: "admin", PasswordHash: string(hash),
		Role: domain.RoleAdmin, Active: true, CreatedAt: now,
	}
	s.users["usr-cashier"] = &domain.User{
		ID: "usr-cashier", Username: "cashier", PasswordHash: string(hash),
		Role: domain.RoleCashier, Active: true, CreatedAt: now,
	}
	s.products["prd-coffee"] = &domain.Product{ID: "prd-coffee", Name: "Coffee", Price: 15000, CostPrice: 9000, Quantity: 100, MinQuantity: 10}
	s.products["prd-tea"] = &domain.Product{ID: "prd-tea", Name: "Tea", Price: 10000, CostPrice: 6000, Quantity: 100, MinQuantity: 10}
	s.products["prd-sugar"] = &domain.Product{ID: "prd-sugar", Name: "Sugar", Price: 8000, CostPrice: 5000, Quantity: 50, MinQuantity: 5}
	return s
}

func (s *Store) Close() error { return nil }

func (s *Store) CreateUser(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = xid.New("usr")
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return fmt.Errorf("%w: username %s already taken", store.ErrValidation, u.Username)
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", store.ErrNotFound, id)
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: user %s", store.ErrNotFound, username)
}

func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) CountActiveCashiers(_ context.Context, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	for _, id := range s.orderSeq {
		o := s.orders[id]
		if o.CreatedAt.Before(since) {
			continue
		}
		if u, ok := s.users[o.UserID]; ok && u.Role == domain.RoleCashier {
			seen[o.UserID] = struct{}{}
		}
	}
	return int64(len(seen)), nil
}

func (s *Store) CreateProduct(_ context.Context, p *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = xid.New("prd")
	}
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, id)
	}
	cp := *p
	return &cp, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateOrder(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	requested := make(map[string]int64, len(order.Items))
	for _, it := range order.Items {
		p, ok := s.products[it.ProductID]
		if !ok {
			return fmt.Errorf("%w: product %s", store.ErrNotFound, it.ProductID)
		}
		requested[it.ProductID] += it.Quantity
		if !s.AllowOversell && p.Quantity < requested[it.ProductID] {
			return fmt.Errorf("%w: product %s has %d, requested %d",
				store.ErrInsufficientStock, p.Name, p.Quantity, requested[it.ProductID])
		}
	}

	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	order.Status = domain.OrderStatusCompleted

	for i := range order.Items {
		it := &order.Items[i]
		if it.ID == "" {
			it.ID = xid.New("oi")
		}
		it.OrderID = order.ID
		s.products[it.ProductID].Quantity -= it.Quantity
	}

	cp := *order
	cp.Items = append([]domain.OrderItem(nil), order.Items...)
	s.orders[order.ID] = &cp
	s.orderSeq = append(s.orderSeq, order.ID)
	return nil
}

func (s *Store) GetOrderByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", store.ErrNotFound, id)
	}
	return s.orderView(o), nil
}

// orderView returns a copy with refund-derived fields filled in. Caller
// must hold the lock.
func (s *Store) orderView(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	if u, ok := s.users[o.UserID]; ok {
		cp.Cashier = u.Username
	}

	refunded := s.refundedByItem(o.ID)
	for i := range cp.Items {
		it := &cp.Items[i]
		if p, ok := s.products[it.ProductID]; ok {
			it.ProductName = p.Name
		}
		it.RefundedQuantity = refunded[it.ID]
		it.AvailableQuantity = it.Quantity - it.RefundedQuantity
	}

	cp.Refunds = nil
	cp.RefundedAmount = 0
	for _, rid := range s.refundSeq {
		r := s.refunds[rid]
		if r.OrderID != o.ID {
			continue
		}
		rc := *r
		rc.Items = append([]domain.RefundItem(nil), r.Items...)
		cp.Refunds = append(cp.Refunds, rc)
		cp.RefundedAmount += r.TotalAmount
	}
	return &cp
}

// refundedByItem sums refunded quantities per order item. Caller must
// hold the lock.
func (s *Store) refundedByItem(orderID string) map[string]int64 {
	out := make(map[string]int64)
	for _, rid := range s.refundSeq {
		r := s.refunds[rid]
		if r.OrderID != orderID {
			continue
		}
		for _, ri := range r.Items {
			out[ri.OrderItemID] += ri.Quantity
		}
	}
	return out
}

func (s *Store) matchOrders(f domain.OrderFilter) []*domain.Order {
	var out []*domain.Order
	for _, id := range s.orderSeq {
		o := s.orders[id]
		if !f.Start.IsZero() && o.CreatedAt.Before(f.Start) {
			continue
		}
		if !f.End.IsZero() && !o.CreatedAt.Before(f.End) {
			continue
		}
		if f.CashierID != "" && o.UserID != f.CashierID {
			continue
		}
		if f.OrderID != "" && !strings.Contains(o.ID, f.OrderID) {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, o.Status) {
			continue
		}
		if f.WithDiscount && o.Discount <= 0 {
			continue
		}
		out = append(out, o)
	}
	return out
}

func containsStatus(statuses []string, status string) bool {
	for _, st := range statuses {
		if st == status {
			return true
		}
	}
	return false
}

func (s *Store) ListOrders(_ context.Context, f domain.OrderFilter) ([]domain.Order, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := s.matchOrders(f)
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	start := (page - 1) * limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]domain.Order, 0, end-start)
	for _, o := range matched[start:end] {
		out = append(out, *s.orderView(o))
	}
	return out, total, nil
}

func (s *Store) AggregateOrders(_ context.Context, f domain.OrderFilter, refundMode bool) (domain.OrderAggregates, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var agg domain.OrderAggregates
	for _, o := range s.matchOrders(f) {
		if refundMode {
			agg.TotalSales += s.refundTotal(o.ID)
			agg.TotalOrders++
			agg.TotalDiscount += o.Discount
			continue
		}
		if o.Status == domain.OrderStatusRefunded {
			continue
		}
		// net sales: partial refunds come straight off the order total
		agg.TotalSales += o.TotalAmount - s.refundTotal(o.ID)
		agg.TotalOrders++
		agg.TotalDiscount += o.Discount
	}
	return agg, nil
}

func (s *Store) refundTotal(orderID string) int64 {
	var total int64
	for _, rid := range s.refundSeq {
		if r := s.refunds[rid]; r.OrderID == orderID {
			total += r.TotalAmount
		}
	}
	return total
}

func (s *Store) CreateRefund(_ context.Context, orderID, userID, reason string, lines []domain.RefundLine) (*domain.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", store.ErrNotFound, orderID)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: refund has no items", store.ErrValidation)
	}

	itemsByID := make(map[string]*domain.OrderItem, len(o.Items))
	for i := range o.Items {
		itemsByID[o.Items[i].ID] = &o.Items[i]
	}
	already := s.refundedByItem(orderID)

	refund := &domain.Refund{
		ID:        xid.New("ref"),
		OrderID:   orderID,
		UserID:    userID,
		Reason:    reason,
		Status:    domain.RefundStatusCompleted,
		CreatedAt: time.Now(),
	}

	requested := make(map[string]int64)
	for _, line := range lines {
		it, ok := itemsByID[line.OrderItemID]
		if !ok {
			return nil, fmt.Errorf("%w: order item %s", store.ErrNotFound, line.OrderItemID)
		}
		if line.Quantity < 1 {
			return nil, fmt.Errorf("%w: refund quantity must be positive", store.ErrValidation)
		}
		requested[line.OrderItemID] += line.Quantity
		available := it.Quantity - already[line.OrderItemID]
		if requested[line.OrderItemID] > available {
			return nil, fmt.Errorf("%w: item %s: requested %d exceeds available %d (already refunded %d of %d)",
				store.ErrValidation, line.OrderItemID, line.Quantity, available,
				already[line.OrderItemID], it.Quantity)
		}

		name := ""
		if p, ok := s.products[it.ProductID]; ok {
			name = p.Name
		}
		refund.Items = append(refund.Items, domain.RefundItem{
			ID:          xid.New("ri"),
			RefundID:    refund.ID,
			OrderItemID: it.ID,
			ProductID:   it.ProductID,
			ProductName: name,
			Quantity:    line.Quantity,
			Price:       it.Price,
			Subtotal:    it.Price * line.Quantity,
		})
		refund.TotalAmount += it.Price * line.Quantity
	}

	for _, ri := range refund.Items {
		if p, ok := s.products[ri.ProductID]; ok {
			p.Quantity += ri.Quantity
		}
	}

	s.refunds[refund.ID] = refund
	s.refundSeq = append(s.refundSeq, refund.ID)

	o.Status = s.deriveStatus(o)

	cp := *refund
	cp.Items = append([]domain.RefundItem(nil), refund.Items...)
	return &cp, nil
}

// deriveStatus re-scans the full refund history of the order. Caller
// must hold the lock.
func (s *Store) deriveStatus(o *domain.Order) string {
	refunded := s.refundedByItem(o.ID)
	any := false
	full := true
	for i := range o.Items {
		it := &o.Items[i]
		if refunded[it.ID] > 0 {
			any = true
		}
		if refunded[it.ID] < it.Quantity {
			full = false
		}
	}
	switch {
	case any && full:
		return domain.OrderStatusRefunded
	case any:
		return domain.OrderStatusPartiallyRefunded
	default:
		return domain.OrderStatusCompleted
	}
}

func (s *Store) GetRefundByID(_ context.Context, id string) (*domain.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.refunds[id]
	if !ok {
		return nil, fmt.Errorf("%w: refund %s", store.ErrNotFound, id)
	}
	return s.refundView(r), nil
}

// refundView returns a copy with the cashier name and a summary of the
// parent order attached. Caller must hold the lock.
func (s *Store) refundView(r *domain.Refund) *domain.Refund {
	cp := *r
	cp.Items = append([]domain.RefundItem(nil), r.Items...)
	if u, ok := s.users[r.UserID]; ok {
		cp.Cashier = u.Username
	}
	if o, ok := s.orders[r.OrderID]; ok {
		cp.Order = &domain.Order{
			ID:          o.ID,
			TotalAmount: o.TotalAmount,
			Status:      o.Status,
			CreatedAt:   o.CreatedAt,
		}
	}
	return &cp
}

func (s *Store) ListRefunds(_ context.Context, page, limit int) ([]domain.Refund, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	total := int64(len(s.refundSeq))

	// newest first
	ids := make([]string, len(s.refundSeq))
	copy(ids, s.refundSeq)
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}

	start := (page - 1) * limit
	if start > len(ids) {
		start = len(ids)
	}
	end := start + limit
	if end > len(ids) {
		end = len(ids)
	}

	out := make([]domain.Refund, 0, end-start)
	for _, id := range ids[start:end] {
		out = append(out, *s.refundView(s.refunds[id]))
	}
	return out, total, nil
}

func (s *Store) ListRefundsByOrder(_ context.Context, orderID string) ([]domain.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[orderID]; !ok {
		return nil, fmt.Errorf("%w: order %s", store.ErrNotFound, orderID)
	}
	var out []domain.Refund
	for _, rid := range s.refundSeq {
		r := s.refunds[rid]
		if r.OrderID == orderID {
			out = append(out, *s.refundView(r))
		}
	}
	return out, nil
}
