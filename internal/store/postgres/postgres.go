package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"martpos/backend/internal/domain"
	"martpos/backend/internal/store"
	"martpos/backend/internal/xid"
)

type Store struct {
	db *sql.DB

	// allowOversell disables the stock availability check on checkout.
	allowOversell bool
}

func New(ctx context.Context, databaseURL string, allowOversell bool) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, allowOversell: allowOversell}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = xid.New("usr")
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, u.ID, u.Username, u.PasswordHash, u.Role, u.Active, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: username %s already taken", store.ErrValidation, u.Username)
		}
		return err
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.getUser(ctx, "id", id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.getUser(ctx, "username", username)
}

func (s *Store) getUser(ctx context.Context, column string, value string) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, username, password_hash, role, active, created_at
		FROM users
		WHERE %s = $1
	`, column), value).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", store.ErrNotFound, value)
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, password_hash, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0, 16)
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) CountActiveCashiers(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT o.user_id)::bigint
		FROM orders o
		JOIN users u ON u.id = o.user_id
		WHERE o.created_at >= $1 AND u.role = $2
	`, since, domain.RoleCashier).Scan(&n)
	return n, err
}

func (s *Store) CreateProduct(ctx context.Context, p *domain.Product) error {
	if p.ID == "" {
		p.ID = xid.New("prd")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, price, cost_price, quantity, min_quantity)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, p.ID, p.Name, p.Price, p.CostPrice, p.Quantity, p.MinQuantity)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("%w: product %s already exists", store.ErrValidation, p.ID)
	}
	return err
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, price, cost_price, quantity, min_quantity
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Price, &p.CostPrice, &p.Quantity, &p.MinQuantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, id)
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price, cost_price, quantity, min_quantity
		FROM products
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.CostPrice, &p.Quantity, &p.MinQuantity); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) CreateOrder(ctx context.Context, order *domain.Order) error {
	if len(order.Items) == 0 {
		return fmt.Errorf("%w: order has no items", store.ErrValidation)
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = pgTx.Rollback() }()

	ids := make([]string, 0, len(order.Items))
	for _, it := range order.Items {
		ids = append(ids, it.ProductID)
	}

	rows, err := pgTx.QueryContext(ctx, `
		SELECT id, name, quantity
		FROM products
		WHERE id = ANY($1)
		FOR UPDATE
	`, ids)
	if err != nil {
		return err
	}
	type productState struct {
		name string
		qty  int64
	}
	stock := make(map[string]productState, len(ids))
	for rows.Next() {
		var id, name string
		var qty int64
		if err := rows.Scan(&id, &name, &qty); err != nil {
			_ = rows.Close()
			return err
		}
		stock[id] = productState{name: name, qty: qty}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	requested := make(map[string]int64, len(order.Items))
	for _, it := range order.Items {
		p, exists := stock[it.ProductID]
		if !exists {
			return fmt.Errorf("%w: product %s", store.ErrNotFound, it.ProductID)
		}
		requested[it.ProductID] += it.Quantity
		if !s.allowOversell && p.qty < requested[it.ProductID] {
			return fmt.Errorf("%w: product %s has %d, requested %d",
				store.ErrInsufficientStock, p.name, p.qty, requested[it.ProductID])
		}
	}

	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	order.Status = domain.OrderStatusCompleted

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, total_amount, discount, tax, payment_method, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, order.ID, order.UserID, order.TotalAmount, order.Discount, order.Tax,
		order.PaymentMethod, order.Status, order.CreatedAt)
	if err != nil {
		return err
	}

	for i := range order.Items {
		it := &order.Items[i]
		if it.ID == "" {
			it.ID = xid.New("oi")
		}
		it.OrderID = order.ID

		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, price, subtotal)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, it.ID, it.OrderID, it.ProductID, it.Quantity, it.Price, it.Subtotal)
		if err != nil {
			return err
		}

		_, err = pgTx.ExecContext(ctx, `
			UPDATE products
			SET quantity = quantity - $1
			WHERE id = $2
		`, it.Quantity, it.ProductID)
		if err != nil {
			return err
		}
	}

	return pgTx.Commit()
}

func (s *Store) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	err := s.db.QueryRowContext(ctx, `
		SELECT o.id, o.user_id, COALESCE(u.username, ''), o.total_amount, o.discount,
			o.tax, o.payment_method, o.status, o.created_at
		FROM orders o
		LEFT JOIN users u ON u.id = o.user_id
		WHERE o.id = $1
	`, id).Scan(&o.ID, &o.UserID, &o.Cashier, &o.TotalAmount, &o.Discount,
		&o.Tax, &o.PaymentMethod, &o.Status, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: order %s", store.ErrNotFound, id)
		}
		return nil, err
	}

	if err := s.attachOrderDetails(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// attachOrderDetails loads items with refund-derived quantities plus the
// full refund history of the order.
func (s *Store) attachOrderDetails(ctx context.Context, o *domain.Order) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT oi.id, oi.product_id, COALESCE(p.name, ''), oi.quantity, oi.price, oi.subtotal,
			COALESCE((
				SELECT SUM(ri.quantity)
				FROM refund_items ri
				WHERE ri.order_item_id = oi.id
			), 0)::bigint
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.id
	`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	o.Items = o.Items[:0]
	for rows.Next() {
		it := domain.OrderItem{OrderID: o.ID}
		if err := rows.Scan(&it.ID, &it.ProductID, &it.ProductName, &it.Quantity,
			&it.Price, &it.Subtotal, &it.RefundedQuantity); err != nil {
			return err
		}
		it.AvailableQuantity = it.Quantity - it.RefundedQuantity
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	refunds, err := s.ListRefundsByOrder(ctx, o.ID)
	if err != nil {
		return err
	}
	o.Refunds = refunds
	o.RefundedAmount = 0
	for _, r := range refunds {
		o.RefundedAmount += r.TotalAmount
	}
	return nil
}

// buildOrderFilter translates the filter into a WHERE clause over the
// aliased orders table "o". extra conditions are prepended verbatim with
// their arguments already in args.
func buildOrderFilter(f domain.OrderFilter, extra []string, args []any) (string, []any) {
	conditions := append([]string(nil), extra...)

	add := func(cond string, val any) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if !f.Start.IsZero() {
		add("o.created_at >= $%d", f.Start)
	}
	if !f.End.IsZero() {
		add("o.created_at < $%d", f.End)
	}
	if f.CashierID != "" {
		add("o.user_id = $%d", f.CashierID)
	}
	if f.OrderID != "" {
		add("o.id ILIKE $%d", "%"+f.OrderID+"%")
	}
	if len(f.Statuses) > 0 {
		add("o.status = ANY($%d)", f.Statuses)
	}
	if f.WithDiscount {
		conditions = append(conditions, "o.discount > 0")
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func (s *Store) ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.Order, int64, error) {
	where, args := buildOrderFilter(f, nil, nil)

	var total int64
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*)::bigint FROM orders o %s`, where), args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	pagedArgs := append(args, limit, (page-1)*limit)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT o.id, o.user_id, COALESCE(u.username, ''), o.total_amount, o.discount,
			o.tax, o.payment_method, o.status, o.created_at
		FROM orders o
		LEFT JOIN users u ON u.id = o.user_id
		%s
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2), pagedArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, limit)
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Cashier, &o.TotalAmount, &o.Discount,
			&o.Tax, &o.PaymentMethod, &o.Status, &o.CreatedAt); err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range orders {
		if err := s.attachOrderDetails(ctx, &orders[i]); err != nil {
			return nil, 0, err
		}
	}
	return orders, total, nil
}

func (s *Store) AggregateOrders(ctx context.Context, f domain.OrderFilter, refundMode bool) (domain.OrderAggregates, error) {
	var agg domain.OrderAggregates
	if refundMode {
		where, args := buildOrderFilter(f, nil, nil)
		err := s.db.QueryRowContext(ctx, fmt.Sprintf(`
			SELECT COUNT(*)::bigint, COALESCE(SUM(o.discount),0)::bigint
			FROM orders o
			%s
		`, where), args...).Scan(&agg.TotalOrders, &agg.TotalDiscount)
		if err != nil {
			return agg, err
		}
		err = s.db.QueryRowContext(ctx, fmt.Sprintf(`
			SELECT COALESCE(SUM(r.total_amount),0)::bigint
			FROM refunds r
			JOIN orders o ON o.id = r.order_id
			%s
		`, where), args...).Scan(&agg.TotalSales)
		return agg, err
	}

	// sales mode drops fully refunded orders and nets partial refunds
	// out of the surviving totals
	where, args := buildOrderFilter(f, []string{"o.status <> $1"}, []any{domain.OrderStatusRefunded})
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*)::bigint,
			COALESCE(SUM(o.total_amount - COALESCE((
				SELECT SUM(r.total_amount)
				FROM refunds r
				WHERE r.order_id = o.id
			), 0)), 0)::bigint,
			COALESCE(SUM(o.discount),0)::bigint
		FROM orders o
		%s
	`, where), args...).Scan(&agg.TotalOrders, &agg.TotalSales, &agg.TotalDiscount)
	return agg, err
}

func (s *Store) CreateRefund(ctx context.Context, orderID, userID, reason string, lines []domain.RefundLine) (*domain.Refund, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: refund has no items", store.ErrValidation)
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var orderStatus string
	err = pgTx.QueryRowContext(ctx, `
		SELECT status
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, orderID).Scan(&orderStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: order %s", store.ErrNotFound, orderID)
		}
		return nil, err
	}

	type itemState struct {
		productID string
		name      string
		quantity  int64
		price     int64
		refunded  int64
	}
	itemRows, err := pgTx.QueryContext(ctx, `
		SELECT oi.id, oi.product_id, COALESCE(p.name, ''), oi.quantity, oi.price,
			COALESCE((
				SELECT SUM(ri.quantity)
				FROM refund_items ri
				WHERE ri.order_item_id = oi.id
			), 0)::bigint
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		FOR UPDATE OF oi
	`, orderID)
	if err != nil {
		return nil, err
	}
	items := make(map[string]*itemState, 8)
	for itemRows.Next() {
		var id string
		st := &itemState{}
		if err := itemRows.Scan(&id, &st.productID, &st.name, &st.quantity, &st.price, &st.refunded); err != nil {
			_ = itemRows.Close()
			return nil, err
		}
		items[id] = st
	}
	if err := itemRows.Err(); err != nil {
		_ = itemRows.Close()
		return nil, err
	}
	_ = itemRows.Close()

	refund := &domain.Refund{
		ID:        xid.New("ref"),
		OrderID:   orderID,
		UserID:    userID,
		Reason:    reason,
		Status:    domain.RefundStatusCompleted,
		CreatedAt: time.Now().UTC(),
	}

	requested := make(map[string]int64, len(lines))
	for _, line := range lines {
		st, exists := items[line.OrderItemID]
		if !exists {
			return nil, fmt.Errorf("%w: order item %s", store.ErrNotFound, line.OrderItemID)
		}
		if line.Quantity < 1 {
			return nil, fmt.Errorf("%w: refund quantity must be positive", store.ErrValidation)
		}
		requested[line.OrderItemID] += line.Quantity
		available := st.quantity - st.refunded
		if requested[line.OrderItemID] > available {
			return nil, fmt.Errorf("%w: item %s: requested %d exceeds available %d (already refunded %d of %d)",
				store.ErrValidation, line.OrderItemID, line.Quantity, available, st.refunded, st.quantity)
		}

		refund.Items = append(refund.Items, domain.RefundItem{
			ID:          xid.New("ri"),
			RefundID:    refund.ID,
			OrderItemID: line.OrderItemID,
			ProductID:   st.productID,
			ProductName: st.name,
			Quantity:    line.Quantity,
			Price:       st.price,
			Subtotal:    st.price * line.Quantity,
		})
		refund.TotalAmount += st.price * line.Quantity
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO refunds (id, order_id, user_id, total_amount, reason, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, refund.ID, refund.OrderID, refund.UserID, refund.TotalAmount, refund.Reason, refund.Status, refund.CreatedAt)
	if err != nil {
		return nil, err
	}

	for _, ri := range refund.Items {
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO refund_items (id, refund_id, order_item_id, product_id, quantity, price, subtotal)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, ri.ID, ri.RefundID, ri.OrderItemID, ri.ProductID, ri.Quantity, ri.Price, ri.Subtotal)
		if err != nil {
			return nil, err
		}

		_, err = pgTx.ExecContext(ctx, `
			UPDATE products
			SET quantity = quantity + $1
			WHERE id = $2
		`, ri.Quantity, ri.ProductID)
		if err != nil {
			return nil, err
		}
	}

	// re-derive the order status from the full refund history
	any := false
	full := true
	for id, st := range items {
		refunded := st.refunded + requested[id]
		if refunded > 0 {
			any = true
		}
		if refunded < st.quantity {
			full = false
		}
	}
	nextStatus := domain.OrderStatusCompleted
	switch {
	case any && full:
		nextStatus = domain.OrderStatusRefunded
	case any:
		nextStatus = domain.OrderStatusPartiallyRefunded
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2
		WHERE id = $1
	`, orderID, nextStatus)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return refund, nil
}

func (s *Store) GetRefundByID(ctx context.Context, id string) (*domain.Refund, error) {
	var r domain.Refund
	err := s.db.QueryRowContext(ctx, `
		SELECT r.id, r.order_id, r.user_id, COALESCE(u.username, ''), r.total_amount,
			r.reason, r.status, r.created_at
		FROM refunds r
		LEFT JOIN users u ON u.id = r.user_id
		WHERE r.id = $1
	`, id).Scan(&r.ID, &r.OrderID, &r.UserID, &r.Cashier, &r.TotalAmount,
		&r.Reason, &r.Status, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: refund %s", store.ErrNotFound, id)
		}
		return nil, err
	}
	if err := s.attachRefundDetails(ctx, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) attachRefundDetails(ctx context.Context, r *domain.Refund) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ri.id, ri.order_item_id, ri.product_id, COALESCE(p.name, ''),
			ri.quantity, ri.price, ri.subtotal
		FROM refund_items ri
		LEFT JOIN products p ON p.id = ri.product_id
		WHERE ri.refund_id = $1
		ORDER BY ri.id
	`, r.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	r.Items = r.Items[:0]
	for rows.Next() {
		ri := domain.RefundItem{RefundID: r.ID}
		if err := rows.Scan(&ri.ID, &ri.OrderItemID, &ri.ProductID, &ri.ProductName,
			&ri.Quantity, &ri.Price, &ri.Subtotal); err != nil {
			return err
		}
		r.Items = append(r.Items, ri)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	summary := &domain.Order{}
	err = s.db.QueryRowContext(ctx, `
		SELECT id, total_amount, status, created_at
		FROM orders
		WHERE id = $1
	`, r.OrderID).Scan(&summary.ID, &summary.TotalAmount, &summary.Status, &summary.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	r.Order = summary
	return nil
}

func (s *Store) ListRefunds(ctx context.Context, page, limit int) ([]domain.Refund, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*)::bigint FROM refunds`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.order_id, r.user_id, COALESCE(u.username, ''), r.total_amount,
			r.reason, r.status, r.created_at
		FROM refunds r
		LEFT JOIN users u ON u.id = r.user_id
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT $1 OFFSET $2
	`, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	refunds := make([]domain.Refund, 0, limit)
	for rows.Next() {
		var r domain.Refund
		if err := rows.Scan(&r.ID, &r.OrderID, &r.UserID, &r.Cashier, &r.TotalAmount,
			&r.Reason, &r.Status, &r.CreatedAt); err != nil {
			return nil, 0, err
		}
		refunds = append(refunds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range refunds {
		if err := s.attachRefundDetails(ctx, &refunds[i]); err != nil {
			return nil, 0, err
		}
	}
	return refunds, total, nil
}

func (s *Store) ListRefundsByOrder(ctx context.Context, orderID string) ([]domain.Refund, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)
	`, orderID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: order %s", store.ErrNotFound, orderID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.order_id, r.user_id, COALESCE(u.username, ''), r.total_amount,
			r.reason, r.status, r.created_at
		FROM refunds r
		LEFT JOIN users u ON u.id = r.user_id
		WHERE r.order_id = $1
		ORDER BY r.created_at, r.id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refunds := make([]domain.Refund, 0, 4)
	for rows.Next() {
		var r domain.Refund
		if err := rows.Scan(&r.ID, &r.OrderID, &r.UserID, &r.Cashier, &r.TotalAmount,
			&r.Reason, &r.Status, &r.CreatedAt); err != nil {
			return nil, err
		}
		refunds = append(refunds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range refunds {
		if err := s.attachRefundDetails(ctx, &refunds[i]); err != nil {
			return nil, err
		}
	}
	return refunds, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
