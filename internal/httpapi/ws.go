package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ishantai95/invoicebot/internal/chat"
)

type wsRequest struct {
	CustomerName string `json:"customer_name"`
	Message      string `json:"message"`
}

type wsError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// handleChatWS serves a persistent chat connection. Each text frame is a
// wsRequest and produces exactly one reply frame: a TurnResult on
// success, a wsError otherwise. Replies go through a single writer
// goroutine so frames are never interleaved.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	svc := s.serviceFor(r)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 64)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	send := func(msg any) bool {
		select {
		case <-ctx.Done():
			return false
		case outbound <- msg:
			return true
		}
	}

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))

		var req wsRequest
		if err := json.Unmarshal(data, &req); err != nil {
			if !send(wsError{Error: err.Error(), Code: "invalid_message"}) {
				break
			}
			continue
		}
		name := strings.TrimSpace(req.CustomerName)
		if name == "" || strings.TrimSpace(req.Message) == "" {
			if !send(wsError{Error: "customer_name and message are required", Code: "invalid_message"}) {
				break
			}
			continue
		}

		result, err := svc.HandleTurn(ctx, name, req.Message)
		if err != nil {
			code, msg := "store_unavailable", "could not verify customer"
			if errors.Is(err, chat.ErrCustomerNotFound) {
				code, msg = "customer_not_found", "no invoices found for this customer"
			}
			s.logger.Error("ws chat turn failed", "customer", name, "error", err)
			if !send(wsError{Error: msg, Code: code}) {
				break
			}
			continue
		}
		if !send(result) {
			break
		}
	}

	cancel()
	<-writerDone
}
