package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/CortexLM/challenge/common/cbor"
	"github.com/CortexLM/challenge/common/errors"
	"github.com/CortexLM/challenge/common/logging"
)

const (
	// HeartbeatInterval is how often a Conn sends a KindHeartbeat frame,
	// whether or not other traffic is flowing, to let the peer reset its
	// idle timer.
	HeartbeatInterval = 15 * time.Second
	// IdleTimeout is how long a Conn waits without receiving any frame
	// (heartbeat or otherwise) before it logs the timeout and closes itself.
	IdleTimeout = 3 * HeartbeatInterval

	// OutboundQueueSize bounds the number of frames a Conn will buffer
	// for writing before Send starts applying backpressure to its caller.
	OutboundQueueSize = 1024
)

// Handler processes an inbound request Message and returns the Message to
// reply with. It must not block for longer than the caller's context
// permits; long-running work (job execution, ORM round-trips against a
// slow backend) should be dispatched to a worker pool instead of running
// inline.
type Handler interface {
	Handle(ctx context.Context, msg *Message) *Message
}

// Conn is a single encrypted, heartbeating, correlation-ID-multiplexed
// duplex connection to one peer (Admin or Consumer).
type Conn struct {
	ws      *websocket.Conn
	role    Role
	key     []byte
	handler Handler
	logger  *logging.Logger

	mu              sync.Mutex
	outSeq          uint64
	inSeq           uint64
	pendingRequests map[string]chan *Message
	closed          bool
	closeCh         chan struct{}

	outCh chan *Message

	lastRecv   time.Time
	lastRecvMu sync.Mutex

	quitWg sync.WaitGroup
}

// New wraps an already-handshaked *websocket.Conn with frame encryption
// under key, for a session declared with the given role, dispatching
// inbound requests to handler.
func New(ws *websocket.Conn, role Role, key []byte, handler Handler) *Conn {
	c := &Conn{
		ws:              ws,
		role:            role,
		key:             key,
		handler:         handler,
		logger:          logging.GetLogger("transport").With("role", role.String()),
		pendingRequests: make(map[string]chan *Message),
		closeCh:         make(chan struct{}),
		outCh:           make(chan *Message, OutboundQueueSize),
	}
	c.touchRecv()

	c.quitWg.Add(3)
	go c.workerOutgoing()
	go c.workerIncoming()
	go c.workerHeartbeat()

	return c
}

// Wait blocks until the connection closes, whether by a read/write
// failure, idle timeout, or an explicit Close call from another
// goroutine. Callers that accepted this Conn from an HTTP upgrade use
// this to keep the request goroutine alive for the connection's lifetime.
func (c *Conn) Wait() {
	<-c.closeCh
}

// Close tears down the connection and stops its worker goroutines.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.closeCh)
	_ = c.ws.Close()
	c.quitWg.Wait()
}

func (c *Conn) touchRecv() {
	c.lastRecvMu.Lock()
	c.lastRecv = time.Now()
	c.lastRecvMu.Unlock()
}

func (c *Conn) idleSince() time.Duration {
	c.lastRecvMu.Lock()
	defer c.lastRecvMu.Unlock()
	return time.Since(c.lastRecv)
}

// Send queues msg for delivery without waiting for a response. It
// respects ctx for cancellation while the outbound queue is full
// (backpressure).
func (c *Conn) Send(ctx context.Context, msg *Message) error {
	select {
	case c.outCh <- msg:
		return nil
	case <-c.closeCh:
		return fmt.Errorf("transport: connection closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Call sends msg as a KindRequest (assigning it a fresh CorrelationID if
// it doesn't already have one) and blocks until the matching KindResponse
// arrives, ctx is done, or the connection closes.
func (c *Conn) Call(ctx context.Context, msg *Message) (*Message, error) {
	msg.Kind = KindRequest
	if msg.CorrelationID == "" {
		msg.CorrelationID = newCorrelationID()
	}

	respCh := make(chan *Message, 1)
	c.mu.Lock()
	c.pendingRequests[msg.CorrelationID] = respCh
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pendingRequests, msg.CorrelationID)
		c.mu.Unlock()
	}()

	if err := c.Send(ctx, msg); err != nil {
		return nil, err
	}

	select {
	case resp := <-respCh:
		if resp.Error != nil {
			return nil, errors.FromCode(resp.Error.Module, resp.Error.Code, resp.Error.Message)
		}
		return resp, nil
	case <-c.closeCh:
		return nil, fmt.Errorf("transport: connection closed while awaiting response")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Conn) workerOutgoing() {
	defer c.quitWg.Done()

	for {
		select {
		case msg := <-c.outCh:
			if err := c.writeMessage(msg); err != nil {
				c.logger.Error("failed to write frame", "err", err)
				return
			}
		case <-c.closeCh:
			return
		}
	}
}

func (c *Conn) writeMessage(msg *Message) error {
	plaintext := cbor.Marshal(msg)

	c.mu.Lock()
	c.outSeq++
	seq := c.outSeq
	c.mu.Unlock()

	frame, err := encodeFrame(c.key, byte(c.role), seq, plaintext)
	if err != nil {
		return err
	}
	framesTotal.WithLabelValues("out", kindLabel(msg.Kind)).Inc()
	return c.ws.WriteMessage(websocket.BinaryMessage, frame)
}

func kindLabel(k Kind) string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	case KindHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

func (c *Conn) workerIncoming() {
	defer c.quitWg.Done()
	defer c.Close()

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			c.logger.Debug("read loop exiting", "err", err)
			return
		}

		c.mu.Lock()
		lastSeq := c.inSeq
		c.mu.Unlock()

		plaintext, seq, err := decodeFrame(frame, c.key, byte(c.role), lastSeq)
		if err != nil {
			reason := "integrity"
			switch err {
			case ErrReplay:
				reason = "replay"
			case ErrOversize:
				reason = "oversize"
			}
			framesDropped.WithLabelValues(reason).Inc()
			c.logger.Error("dropping malformed/replayed frame", "err", err)
			return
		}

		c.mu.Lock()
		c.inSeq = seq
		c.mu.Unlock()
		c.touchRecv()

		var msg Message
		if err := cbor.Unmarshal(plaintext, &msg); err != nil {
			c.logger.Error("failed to decode frame payload", "err", err)
			continue
		}
		framesTotal.WithLabelValues("in", kindLabel(msg.Kind)).Inc()

		c.dispatch(&msg)
	}
}

func (c *Conn) dispatch(msg *Message) {
	switch msg.Kind {
	case KindHeartbeat:
		return
	case KindResponse:
		c.mu.Lock()
		ch, ok := c.pendingRequests[msg.CorrelationID]
		c.mu.Unlock()
		if !ok {
			c.logger.Warn("received response with no matching request", "correlation_id", msg.CorrelationID)
			return
		}
		ch <- msg
	case KindRequest:
		if c.handler == nil {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 300*time.Second)
			defer cancel()

			resp := c.handler.Handle(ctx, msg)
			if resp == nil {
				return
			}
			resp.Kind = KindResponse
			resp.CorrelationID = msg.CorrelationID
			if err := c.Send(ctx, resp); err != nil {
				c.logger.Error("failed to send response", "err", err)
			}
		}()
	}
}

func (c *Conn) workerHeartbeat() {
	defer c.quitWg.Done()

	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	idleCheck := time.NewTicker(HeartbeatInterval)
	defer idleCheck.Stop()

	for {
		select {
		case <-ticker.C:
			hb := &Message{Kind: KindHeartbeat}
			ctx, cancel := context.WithTimeout(context.Background(), HeartbeatInterval)
			_ = c.Send(ctx, hb)
			cancel()
		case <-idleCheck.C:
			if c.idleSince() > IdleTimeout {
				c.logger.Error("connection idle timeout", "idle_for", c.idleSince())
				c.Close()
				return
			}
		case <-c.closeCh:
			return
		}
	}
}
