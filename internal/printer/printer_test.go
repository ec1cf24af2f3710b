package printer

import (
	"context"
	"io"
	"net"
	"testing"
	"time"
)

func TestPrintWritesPayload(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		received <- data
	}()

	p := New(ln.Addr().String(), 2*time.Second)
	payload := []byte{0x1b, 0x40, 'h', 'i', '\n'}
	if err := p.Print(context.Background(), "ord-1", payload); err != nil {
		t.Fatalf("print: %v", err)
	}

	select {
	case data := <-received:
		if string(data) != string(payload) {
			t.Fatalf("printer received %q, want %q", data, payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("printer never received payload")
	}
}

func TestPrintRejectsConcurrentSameOrder(t *testing.T) {
	p := New("127.0.0.1:1", time.Second)

	p.mu.Lock()
	p.inFlight["ord-busy"] = struct{}{}
	p.mu.Unlock()

	err := p.Print(context.Background(), "ord-busy", []byte("x"))
	if err == nil {
		t.Fatal("expected busy error for in-flight order")
	}
}

func TestPrintRequiresAddress(t *testing.T) {
	p := New("", time.Second)
	if err := p.Print(context.Background(), "ord-1", []byte("x")); err == nil {
		t.Fatal("expected error when printer address missing")
	}
}
