// Package printer pushes raw ESC/POS payloads to a network receipt
// printer. Concurrent prints for the same order are rejected so a
// double-tapped print button cannot produce duplicate receipts.
package printer

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

type Printer struct {
	addr    string
	timeout time.Duration

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func New(addr string, timeout time.Duration) *Printer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Printer{
		addr:     addr,
		timeout:  timeout,
		inFlight: make(map[string]struct{}),
	}
}

// Print sends payload to the printer, holding an in-flight slot for
// orderID for the duration of the write.
func (p *Printer) Print(ctx context.Context, orderID string, payload []byte) error {
	if p.addr == "" {
		return fmt.Errorf("printer address not configured")
	}

	p.mu.Lock()
	if _, busy := p.inFlight[orderID]; busy {
		p.mu.Unlock()
		return fmt.Errorf("print already in progress for order %s", orderID)
	}
	p.inFlight[orderID] = struct{}{}
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.inFlight, orderID)
		p.mu.Unlock()
	}()

	dialer := net.Dialer{Timeout: p.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return fmt.Errorf("dial printer: %w", err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(p.timeout)); err != nil {
		return err
	}
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("write to printer: %w", err)
	}
	return nil
}
