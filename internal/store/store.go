package store

import (
	"context"
	"errors"
	"time"

	"martpos/backend/internal/domain"
)

var (
	// ErrNotFound marks lookups for rows that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks requests rejected by business rules.
	ErrValidation = errors.New("validation failed")
	// ErrInsufficientStock marks checkouts that would drive stock negative.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Repository is the persistence surface shared by the Postgres and
// in-memory implementations.
type Repository interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	CountActiveCashiers(ctx context.Context, since time.Time) (int64, error)

	CreateProduct(ctx context.Context, p *domain.Product) error
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)

	// CreateOrder persists the order and applies relative stock
	// decrements in one transaction.
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.Order, int64, error)
	// AggregateOrders computes totals over every order matching f,
	// ignoring pagination. In refund mode the totals come from refund
	// amounts instead of order amounts.
	AggregateOrders(ctx context.Context, f domain.OrderFilter, refundMode bool) (domain.OrderAggregates, error)

	// CreateRefund validates the requested lines against remaining
	// refundable quantities, restores stock, and re-derives the order
	// status, all in one transaction.
	CreateRefund(ctx context.Context, orderID, userID, reason string, lines []domain.RefundLine) (*domain.Refund, error)
	GetRefundByID(ctx context.Context, id string) (*domain.Refund, error)
	ListRefunds(ctx context.Context, page, limit int) ([]domain.Refund, int64, error)
	ListRefundsByOrder(ctx context.Context, orderID string) ([]domain.Refund, error)

	Close() error
}
