package service

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	chatdomain "cleanmatch_client/client/chat/domain"
	cmnlog "cleanmatch_client/client/common/log"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

const wsWriteTimeout = 5 * time.Second

// Handlers receive the channel's transport and application events. The
// manager performs no buffering or replay: a message arriving while
// disconnected is lost unless re-fetched via history.
type Handlers struct {
	OnConnect      func()
	OnDisconnect   func()
	OnConnectError func(err error)
	OnMessage      func(msg chatdomain.Message)
	OnHistory      func(history []chatdomain.Message)
	OnError        func(message string)
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Manager owns the single live socket connection, keyed by the auth token it
// was opened with. Only the session's token lifecycle may connect or
// disconnect it; everything else just subscribes.
type Manager struct {
	mu       sync.Mutex
	wsURL    string
	state    State
	conn     *websocket.Conn
	boundID  string
	handlers Handlers
}

// NewManager derives the websocket endpoint from the API base URL: same
// host, ws scheme, /ws path.
func NewManager(baseURL string) *Manager {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	wsURL := trimmed
	switch {
	case strings.HasPrefix(trimmed, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(trimmed, "https://")
	case strings.HasPrefix(trimmed, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(trimmed, "http://")
	}
	return &Manager{wsURL: wsURL + "/ws", state: StateDisconnected}
}

// Bind registers the handler set for one identity. Any previous registration
// is detached first so a token refresh can never double-deliver.
func (m *Manager) Bind(identityID string, handlers Handlers) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.boundID != "" {
		cmnlog.Debugf("event=realtime action=detach user_id=%s", m.boundID)
	}
	m.boundID = identityID
	m.handlers = handlers
	cmnlog.Debugf("event=realtime action=attach user_id=%s", identityID)
}

func (m *Manager) Unbind() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boundID = ""
	m.handlers = Handlers{}
}

// Connect opens the channel with the token as connection-time auth. An
// existing live connection is torn down first, so calling with a fresh token
// leaves exactly one connection carrying the new token.
func (m *Manager) Connect(ctx context.Context, token string) error {
	m.mu.Lock()
	m.teardownLocked()
	m.state = StateConnecting
	handlers := m.handlers
	m.mu.Unlock()

	endpoint := m.wsURL + "?token=" + url.QueryEscape(token)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		m.mu.Lock()
		m.state = StateDisconnected
		m.mu.Unlock()
		cmnlog.Warnf("event=realtime action=connect status=failed error=%v", err)
		if handlers.OnConnectError != nil {
			handlers.OnConnectError(err)
		}
		return err
	}

	m.mu.Lock()
	m.conn = conn
	m.state = StateConnected
	m.mu.Unlock()
	cmnlog.Infof("event=realtime action=connect status=ok")
	if handlers.OnConnect != nil {
		handlers.OnConnect()
	}
	go m.readLoop(conn)
	return nil
}

// Disconnect tears the transport down. Invoked on logout and before every
// reconnect; a deliberate teardown is not surfaced as a transport drop.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) teardownLocked() {
	if m.conn == nil {
		m.state = StateDisconnected
		return
	}
	_ = m.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	_ = m.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = m.conn.Close()
	m.conn = nil
	m.state = StateDisconnected
	cmnlog.Infof("event=realtime action=disconnect status=ok")
}

func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			m.mu.Lock()
			dropped := m.conn == conn
			if dropped {
				m.conn = nil
				m.state = StateDisconnected
			}
			handlers := m.handlers
			m.mu.Unlock()
			if dropped {
				cmnlog.Warnf("event=realtime action=read status=dropped error=%v", err)
				if handlers.OnDisconnect != nil {
					handlers.OnDisconnect()
				}
			}
			return
		}
		m.dispatch(raw)
	}
}

func (m *Manager) dispatch(raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		cmnlog.Debugf("event=realtime action=dispatch status=skipped error=%v", err)
		return
	}

	m.mu.Lock()
	boundID := m.boundID
	handlers := m.handlers
	m.mu.Unlock()

	switch env.Type {
	case "message":
		var msg chatdomain.Message
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return
		}
		if boundID != "" && msg.ReceiverID != boundID && msg.SenderID != boundID {
			return
		}
		if handlers.OnMessage != nil {
			handlers.OnMessage(msg)
		}
	case "chatHistory":
		var history []chatdomain.Message
		if err := json.Unmarshal(env.Payload, &history); err != nil {
			return
		}
		if handlers.OnHistory != nil {
			handlers.OnHistory(history)
		}
	case "error":
		var payload struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return
		}
		cmnlog.Warnf("event=realtime action=server_error message=%s", payload.Message)
		if handlers.OnError != nil {
			handlers.OnError(payload.Message)
		}
	default:
		cmnlog.Debugf("event=realtime action=dispatch status=ignored type=%s", env.Type)
	}
}
