package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/Ruixi-rebirth/async-autotiling/internal/util"
)

// Window event change kinds delivered on the subscription stream.
const (
	WindowChangeFocus          = "focus"
	WindowChangeNew            = "new"
	WindowChangeClose          = "close"
	WindowChangeMove           = "move"
	WindowChangeFloating       = "floating"
	WindowChangeFullscreenMode = "fullscreen_mode"
)

// Event is one window event from the subscription stream. The container
// payload is deliberately not decoded: decisions always run against a fresh
// tree, never against event-time data.
type Event struct {
	Change string `json:"change"`
}

// Subscribe dials a dedicated event connection, registers for window events,
// and streams them until the socket fails or the context is cancelled. The
// returned channel is closed when the stream ends.
func Subscribe(ctx context.Context, path string, logger *util.Logger) (<-chan Event, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, &TransportError{Op: "connect events", Err: err}
	}
	if err := subscribeWindowEvents(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		defer conn.Close()
		// Unblock the pending read when the context ends.
		stop := context.AfterFunc(ctx, func() { conn.Close() })
		defer stop()
		for {
			frameType, payload, err := readMessage(conn)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warnf("event stream error: %v", err)
				}
				return
			}
			if frameType != eventWindow {
				continue
			}
			var ev Event
			if err := json.Unmarshal(payload, &ev); err != nil {
				logger.Debugf("discarding malformed window event: %v", err)
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

func subscribeWindowEvents(ctx context.Context, conn net.Conn) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}
	if err := writeMessage(conn, msgSubscribe, []byte(`["window"]`)); err != nil {
		return &TransportError{Op: "subscribe", Err: err}
	}
	for {
		replyType, payload, err := readMessage(conn)
		if err != nil {
			return &TransportError{Op: "subscribe", Err: err}
		}
		if replyType&eventFlag != 0 {
			continue
		}
		if replyType != msgSubscribe {
			return &TransportError{Op: "subscribe", Err: errors.New("unexpected reply type")}
		}
		var ack struct {
			Success bool `json:"success"`
		}
		if err := json.Unmarshal(payload, &ack); err != nil {
			return &TransportError{Op: "subscribe", Err: err}
		}
		if !ack.Success {
			return &TransportError{Op: "subscribe", Err: errors.New("subscription rejected")}
		}
		return nil
	}
}
