// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket dial timing
const (
	wsHandshakeTimeout = 10 * time.Second
	wsDialTimeout      = 15 * time.Second
)

// WebSocketBridge carries the console over a WebSocket serial bridge.
// Each message holds one or more lines of console text.
type WebSocketBridge struct {
	url       string
	conn      *websocket.Conn
	buf       []byte
	bufOffset int
	closed    bool

	writeMu sync.Mutex
}

func (w *WebSocketBridge) Read(p []byte) (int, error) {
	if w.closed {
		return 0, ErrClosed
	}

	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			return 0, err
		}

		// Bridges send console text either way; control frames are
		// handled by the library
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		if len(data) == 0 {
			continue
		}

		w.buf = data
		w.bufOffset = 0
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	}
}

func (w *WebSocketBridge) Write(p []byte) (int, error) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if err := w.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketBridge) Close() error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return w.conn.Close()
}

// String returns the bridge URL.
func (w *WebSocketBridge) String() string {
	return "websocket " + w.url
}

// OpenWebSocket dials a console bridge with optional HTTP Basic auth.
func OpenWebSocket(wsURL, username, password string, skipTLSVerify bool) (*WebSocketBridge, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: wsHandshakeTimeout,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipTLSVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), wsDialTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, &Error{Op: fmt.Sprintf("websocket dial (HTTP %d)", resp.StatusCode), Err: err}
		}
		return nil, &Error{Op: "websocket dial", Err: err}
	}

	return &WebSocketBridge{url: wsURL, conn: conn}, nil
}
