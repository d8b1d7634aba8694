package webrtc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"interviewroom/internal/core/domain"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
)

const (
	msgJoin        = "join"
	msgJoined      = "joined"
	msgError       = "error"
	msgOffer       = "offer"
	msgAnswer      = "answer"
	msgCandidate   = "candidate"
	msgPublish     = "publish"
	msgUnpublish   = "unpublish"
	msgSubscribe   = "subscribe"
	msgLeave       = "leave"
	msgPublished   = "published"
	msgUnpublished = "unpublished"
	msgLeft        = "left"
)

// Error codes the SFU uses to reject a join.
const (
	codeInvalidCredential = "invalid_credential"
	codeCredentialExpired = "credential_expired"
)

type signalMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type joinPayload struct {
	AppID   string        `json:"app_id"`
	Channel string        `json:"channel"`
	Token   string        `json:"token"`
	UserID  domain.UserID `json:"uid"`
}

type joinedPayload struct {
	Participants []channelMember `json:"participants"`
}

type channelMember struct {
	UserID domain.UserID      `json:"uid"`
	Kinds  []domain.MediaKind `json:"kinds"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type sdpPayload struct {
	SDP string `json:"sdp"`
}

type candidatePayload struct {
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

type trackPayload struct {
	TrackID string           `json:"track_id,omitempty"`
	UserID  domain.UserID    `json:"uid,omitempty"`
	Kind    domain.MediaKind `json:"kind,omitempty"`
}

// joinError maps an SFU rejection onto the domain errors the controller understands.
func joinError(p errorPayload) error {
	switch p.Code {
	case codeInvalidCredential:
		return fmt.Errorf("%w: %s", domain.ErrInvalidCredential, p.Message)
	case codeCredentialExpired:
		return fmt.Errorf("%w: %s", domain.ErrCredentialExpired, p.Message)
	}
	return fmt.Errorf("join rejected (%s): %s", p.Code, p.Message)
}

// signalClient is one websocket connection to the SFU. Writes are serialized; reads happen on a
// single goroutine.
type signalClient struct {
	conn         *websocket.Conn
	writeMu      sync.Mutex
	writeTimeout time.Duration
	readTimeout  time.Duration
	closeOnce    sync.Once
}

func dialSignal(ctx context.Context, url string, readTimeout, writeTimeout time.Duration) (*signalClient, error) {
	dialer := websocket.Dialer{HandshakeTimeout: writeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial signaling %s: %w", url, err)
	}

	c := &signalClient{conn: conn, writeTimeout: writeTimeout, readTimeout: readTimeout}
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(c.writeTimeout))
	})
	return c, nil
}

func (c *signalClient) send(msgType string, payload interface{}) error {
	msg := signalMessage{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s: %w", msgType, err)
		}
		msg.Payload = raw
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send %s: %w", msgType, err)
	}
	return nil
}

// read blocks for the next message. A zero deadline falls back to the read timeout.
func (c *signalClient) read(deadline time.Time) (signalMessage, error) {
	if deadline.IsZero() {
		deadline = time.Now().Add(c.readTimeout)
	}
	_ = c.conn.SetReadDeadline(deadline)

	var msg signalMessage
	if err := c.conn.ReadJSON(&msg); err != nil {
		return signalMessage{}, err
	}
	return msg, nil
}

// handshake sends the join request and waits for the SFU verdict.
func (c *signalClient) handshake(ctx context.Context, join joinPayload) (joinedPayload, error) {
	if err := c.send(msgJoin, join); err != nil {
		return joinedPayload{}, err
	}

	deadline, _ := ctx.Deadline()
	stop := context.AfterFunc(ctx, func() { _ = c.conn.SetReadDeadline(time.Now()) })
	defer stop()

	for {
		msg, err := c.read(deadline)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return joinedPayload{}, ctxErr
			}
			if !deadline.IsZero() && !time.Now().Before(deadline) {
				return joinedPayload{}, context.DeadlineExceeded
			}
			return joinedPayload{}, fmt.Errorf("await join: %w", err)
		}

		switch msg.Type {
		case msgJoined:
			var joined joinedPayload
			if err := decode(msg, &joined); err != nil {
				return joinedPayload{}, err
			}
			return joined, nil
		case msgError:
			var p errorPayload
			if err := decode(msg, &p); err != nil {
				return joinedPayload{}, err
			}
			return joinedPayload{}, joinError(p)
		}
	}
}

func (c *signalClient) close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(c.writeTimeout))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// decode leaves v untouched for messages without a payload.
func decode(msg signalMessage, v interface{}) error {
	if len(msg.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("decode %s: %w", msg.Type, err)
	}
	return nil
}
