// Package wsbus carries utterances and spoken replies over websockets, so a
// browser or phone can act as the assistant's microphone and speaker.
//
// Clients send typed commands:
//
//	{"type":"utterance","id":"42","data":{"text":"youtube par lofi chalao"}}
//	{"type":"ping"}
//
// and receive events:
//
//	{"type":"ack","id":"42"}
//	{"type":"say","text":"YouTube par lofi dhoond raha hoon."}
//	{"type":"error","id":"42","error":"..."}
//
// [Bus] implements both [speech.Listener] and [speech.Speaker].
package wsbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-playground/validator/v10"

	"github.com/MrWong99/chacha/pkg/speech"
)

// ErrNoClients is returned by [Bus.Speak] when nobody is connected.
var ErrNoClients = errors.New("wsbus: no clients connected")

// Command is a message received from a client.
type Command struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Event is a message sent to clients.
type Event struct {
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

// Command and event types.
const (
	TypeUtterance = "utterance"
	TypePing      = "ping"
	TypePong      = "pong"
	TypeAck       = "ack"
	TypeSay       = "say"
	TypeError     = "error"
)

type utterance struct {
	Text string `json:"text" validate:"required,max=500"`
}

var (
	_ speech.Listener = (*Bus)(nil)
	_ speech.Speaker  = (*Bus)(nil)
)

type client struct {
	send chan Event
	// closeSlow drops a client that cannot keep up.
	closeSlow func()
}

// Bus fans spoken text out to every connected client and queues their
// utterances for [Bus.Listen].
type Bus struct {
	listenTimeout time.Duration
	sendBuffer    int
	origins       []string
	validate      *validator.Validate

	utterances chan string

	mu      sync.Mutex
	clients map[*client]struct{}
}

// Option configures a [Bus].
type Option func(*Bus)

// WithListenTimeout makes Listen return [speech.ErrNoInput] after d without
// an utterance. Zero waits indefinitely.
func WithListenTimeout(d time.Duration) Option { return func(b *Bus) { b.listenTimeout = d } }

// WithOriginPatterns allows cross-origin clients matching patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(b *Bus) { b.origins = patterns }
}

// New creates a Bus.
func New(opts ...Option) *Bus {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	b := &Bus{
		sendBuffer: 16,
		validate:   v,
		utterances: make(chan string, 8),
		clients:    make(map[*client]struct{}),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Clients returns the number of connected clients.
func (b *Bus) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Listen returns the next utterance from any client.
func (b *Bus) Listen(ctx context.Context) (string, error) {
	var timeout <-chan time.Time
	if b.listenTimeout > 0 {
		t := time.NewTimer(b.listenTimeout)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case text := <-b.utterances:
		return text, nil
	case <-timeout:
		return "", speech.ErrNoInput
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Speak sends text to every client. Blank text is a no-op.
func (b *Bus) Speak(_ context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.clients) == 0 {
		return ErrNoClients
	}
	for c := range b.clients {
		b.deliver(c, Event{Type: TypeSay, Text: text})
	}
	return nil
}

// deliver must be called with b.mu held. A slow client is closed in the
// background since the close handshake can take seconds.
func (b *Bus) deliver(c *client, ev Event) {
	select {
	case c.send <- ev:
	default:
		slog.Warn("wsbus: dropping slow client")
		delete(b.clients, c)
		go c.closeSlow()
	}
}

// ServeHTTP upgrades the request and serves one client until it leaves.
func (b *Bus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: b.origins})
	if err != nil {
		slog.Debug("wsbus: accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &client{
		send: make(chan Event, b.sendBuffer),
		closeSlow: func() {
			conn.Close(websocket.StatusPolicyViolation, "client too slow")
		},
	}
	b.mu.Lock()
	b.clients[c] = struct{}{}
	b.mu.Unlock()
	defer b.remove(c)

	slog.Info("wsbus: client connected", "remote", r.RemoteAddr)
	go b.write(ctx, conn, c)

	err = b.read(ctx, conn, c)
	if status := websocket.CloseStatus(err); status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
		err = nil
	}
	slog.Info("wsbus: client disconnected", "remote", r.RemoteAddr, "err", err)
}

func (b *Bus) remove(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.clients, c)
}

// write is the only writer to conn.
func (b *Bus) write(ctx context.Context, conn *websocket.Conn, c *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(wctx, conn, ev)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (b *Bus) read(ctx context.Context, conn *websocket.Conn, c *client) error {
	for {
		var cmd Command
		if err := wsjson.Read(ctx, conn, &cmd); err != nil {
			return err
		}
		reply := b.handle(ctx, cmd)
		b.mu.Lock()
		if _, ok := b.clients[c]; ok {
			b.deliver(c, reply)
		}
		b.mu.Unlock()
	}
}

// handle executes one command and returns the reply for its sender.
func (b *Bus) handle(ctx context.Context, cmd Command) Event {
	switch cmd.Type {
	case TypePing:
		return Event{Type: TypePong, ID: cmd.ID}
	case TypeUtterance:
		var u utterance
		if err := json.Unmarshal(cmd.Data, &u); err != nil {
			return Event{Type: TypeError, ID: cmd.ID, Error: fmt.Sprintf("invalid data: %v", err)}
		}
		u.Text = strings.TrimSpace(u.Text)
		if err := b.validate.Struct(u); err != nil {
			return Event{Type: TypeError, ID: cmd.ID, Error: validationMessage(err)}
		}
		select {
		case b.utterances <- u.Text:
			return Event{Type: TypeAck, ID: cmd.ID}
		case <-ctx.Done():
			return Event{Type: TypeError, ID: cmd.ID, Error: "connection closing"}
		}
	default:
		return Event{Type: TypeError, ID: cmd.ID, Error: fmt.Sprintf("unknown command type %q", cmd.Type)}
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}
