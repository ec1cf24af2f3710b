package domain

import "time"

const (
	OrderStatusCompleted         = "COMPLETED"
	OrderStatusPartiallyRefunded = "PARTIALLY_REFUNDED"
	OrderStatusRefunded          = "REFUNDED"

	RefundStatusCompleted = "COMPLETED"

	RoleAdmin   = "ADMIN"
	RoleCashier = "CASHIER"
)

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	CostPrice   int64  `json:"costPrice"`
	Quantity    int64  `json:"quantity"`
	MinQuantity int64  `json:"minQuantity"`
}

type Order struct {
	ID             string      `json:"id"`
	UserID         string      `json:"userId"`
	Cashier        string      `json:"cashier,omitempty"`
	TotalAmount    int64       `json:"totalAmount"`
	Discount       int64       `json:"discount"`
	Tax            int64       `json:"tax"`
	PaymentMethod  string      `json:"paymentMethod"`
	Status         string      `json:"status"`
	RefundedAmount int64       `json:"refundedAmount"`
	CreatedAt      time.Time   `json:"createdAt"`
	Items          []OrderItem `json:"items,omitempty"`
	Refunds        []Refund    `json:"refunds,omitempty"`
}

type OrderItem struct {
	ID          string `json:"id"`
	OrderID     string `json:"orderId"`
	ProductID   string `json:"productId"`
	ProductName string `json:"productName,omitempty"`
	Quantity    int64  `json:"quantity"`
	Price       int64  `json:"price"`
	Subtotal    int64  `json:"subtotal"`
	// RefundedQuantity and AvailableQuantity are derived from refund
	// history when the order is loaded, never stored.
	RefundedQuantity  int64 `json:"refundedQuantity"`
	AvailableQuantity int64 `json:"availableQuantity"`
}

type Refund struct {
	ID          string       `json:"id"`
	OrderID     string       `json:"orderId"`
	UserID      string       `json:"userId"`
	Cashier     string       `json:"cashier,omitempty"`
	TotalAmount int64        `json:"totalAmount"`
	Reason      string       `json:"reason"`
	Status      string       `json:"status"`
	CreatedAt   time.Time    `json:"createdAt"`
	Items       []RefundItem `json:"items,omitempty"`
	Order       *Order       `json:"order,omitempty"`
}

type RefundItem struct {
	ID          string `json:"id"`
	RefundID    string `json:"refundId"`
	OrderItemID string `json:"orderItemId"`
	ProductID   string `json:"productId"`
	ProductName string `json:"productName,omitempty"`
	Quantity    int64  `json:"quantity"`
	Price       int64  `json:"price"`
	Subtotal    int64  `json:"subtotal"`
}

// RefundLine is one requested refund against an order item.
type RefundLine struct {
	OrderItemID string `json:"orderItemId"`
	Quantity    int64  `json:"quantity"`
}

type CheckoutItem struct {
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
	Price     int64  `json:"price"`
}

type CheckoutRequest struct {
	Items         []CheckoutItem `json:"items"`
	Discount      int64          `json:"discount"`
	Tax           int64          `json:"tax"`
	PaymentMethod string         `json:"paymentMethod"`
	TotalAmount   int64          `json:"totalAmount"`
}

type RefundRequest struct {
	OrderID string       `json:"orderId"`
	Reason  string       `json:"reason"`
	Items   []RefundLine `json:"items"`
}

type OrderFilter struct {
	Start        time.Time
	End          time.Time
	CashierID    string
	OrderID      string
	Statuses     []string
	WithDiscount bool
	Page         int
	Limit        int
}

type OrderAggregates struct {
	TotalSales    int64 `json:"totalSales"`
	TotalOrders   int64 `json:"totalOrders"`
	TotalDiscount int64 `json:"totalDiscount"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalRows  int64 `json:"totalRows"`
	TotalPages int   `json:"totalPages"`
}

type DashboardStats struct {
	DailySales     int64 `json:"dailySales"`
	TotalOrders    int64 `json:"totalOrders"`
	LowStockCount  int64 `json:"lowStockCount"`
	ActiveCashiers int64 `json:"activeCashiers"`
}

type OrderListResponse struct {
	Orders     []Order         `json:"orders"`
	Pagination Pagination      `json:"pagination"`
	Aggregates OrderAggregates `json:"aggregates"`
}

type RefundListResponse struct {
	Refunds    []Refund   `json:"refunds"`
	Pagination Pagination `json:"pagination"`
}

// ReportQuery carries the raw reporting parameters. Dates holds repeated
// date values; two or more select the span between the earliest and the
// latest.
type ReportQuery struct {
	Date         string
	Dates        []string
	StartDate    string
	EndDate      string
	CashierID    string
	WithDiscount bool
	Page         int
	Limit        int
}

type DailyReportResponse struct {
	StartDate  string          `json:"startDate"`
	EndDate    string          `json:"endDate"`
	Aggregates OrderAggregates `json:"aggregates"`
	Orders     []Order         `json:"orders"`
	Pagination Pagination      `json:"pagination"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      Actor     `json:"user"`
}

// Actor is the authenticated principal attached to a request.
type Actor struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type ReceiptResponse struct {
	OrderID      string `json:"orderId"`
	EscposBase64 string `json:"escposBase64"`
	PreviewText  string `json:"previewText"`
	FileName     string `json:"fileName"`
}

type ProductCreateRequest struct {
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	CostPrice   int64  `json:"costPrice"`
	Quantity    int64  `json:"quantity"`
	MinQuantity int64  `json:"minQuantity"`
}
