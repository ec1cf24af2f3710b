package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"martpos/backend/internal/domain"
	"martpos/backend/internal/store"
)

func seedOrder(t *testing.T, s *Store, userID string, productID string, qty int64, discount int64, createdAt time.Time) *domain.Order {
	t.Helper()

	p, err := s.GetProductByID(context.Background(), productID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	order := &domain.Order{
		UserID:        userID,
		TotalAmount:   p.Price*qty - discount,
		Discount:      discount,
		PaymentMethod: "cash",
		CreatedAt:     createdAt,
		Items: []domain.OrderItem{
			{ProductID: productID, Quantity: qty, Price: p.Price, Subtotal: p.Price * qty},
		},
	}
	if err := s.CreateOrder(context.Background(), order); err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func TestListOrdersFilters(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	day1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC)

	first := seedOrder(t, s, "usr-cashier", "prd-tea", 2, 0, day1)
	seedOrder(t, s, "usr-admin", "prd-coffee", 1, 500, day2)
	seedOrder(t, s, "usr-cashier", "prd-sugar", 1, 0, day2)

	orders, total, err := s.ListOrders(ctx, domain.OrderFilter{
		Start: day2.Truncate(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("list by start: %v", err)
	}
	if total != 2 || len(orders) != 2 {
		t.Fatalf("expected 2 orders from day2, got %d", total)
	}

	orders, total, err = s.ListOrders(ctx, domain.OrderFilter{CashierID: "usr-admin"})
	if err != nil {
		t.Fatalf("list by cashier: %v", err)
	}
	if total != 1 || orders[0].Cashier != "admin" {
		t.Fatalf("expected the single admin order, got %d (%+v)", total, orders)
	}

	_, total, err = s.ListOrders(ctx, domain.OrderFilter{WithDiscount: true})
	if err != nil {
		t.Fatalf("list with discount: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected 1 discounted order, got %d", total)
	}

	_, total, err = s.ListOrders(ctx, domain.OrderFilter{OrderID: first.ID})
	if err != nil {
		t.Fatalf("list by order id: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected id match to find 1 order, got %d", total)
	}
}

func TestListOrdersPaginatesNewestFirst(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	base := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedOrder(t, s, "usr-cashier", "prd-tea", 1, 0, base.Add(time.Duration(i)*time.Hour))
	}

	page1, total, err := s.ListOrders(ctx, domain.OrderFilter{Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("list page 1: %v", err)
	}
	if total != 5 || len(page1) != 2 {
		t.Fatalf("expected 5 total with 2 on page, got %d/%d", total, len(page1))
	}
	if !page1[0].CreatedAt.After(page1[1].CreatedAt) {
		t.Fatalf("expected newest first, got %v then %v", page1[0].CreatedAt, page1[1].CreatedAt)
	}

	page3, _, err := s.ListOrders(ctx, domain.OrderFilter{Page: 3, Limit: 2})
	if err != nil {
		t.Fatalf("list page 3: %v", err)
	}
	if len(page3) != 1 {
		t.Fatalf("expected 1 order on last page, got %d", len(page3))
	}
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	s := NewSeeded()

	err := s.CreateOrder(context.Background(), &domain.Order{
		UserID: "usr-cashier",
		Items:  []domain.OrderItem{{ProductID: "prd-missing", Quantity: 1}},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown product, got %v", err)
	}
}

func TestCreateUserRejectsDuplicateUsername(t *testing.T) {
	s := NewSeeded()

	err := s.CreateUser(context.Background(), &domain.User{
		Username: "admin",
		Role:     domain.RoleAdmin,
		Active:   true,
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for duplicate username, got %v", err)
	}
}
