package interceptor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
)

// ListenOptions configures Listen.
type ListenOptions struct {
	Header   http.Header
	Dialer   *websocket.Dialer
	Logger   hclog.Logger
	OnUpdate func(Message) // called after each applied update
}

// Listen connects to the gateway's credential channel and applies every
// update to injector until ctx is cancelled or the connection drops. It
// returns nil when ctx ends.
func Listen(ctx context.Context, wsURL string, injector *AuthInjector, opts ListenOptions) error {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	log := opts.Logger
	if log == nil {
		log = hclog.NewNullLogger()
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL, opts.Header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return fmt.Errorf("credential channel refused with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dial credential channel: %w", err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadlineSoon())
			conn.Close()
		case <-stop:
		}
	}()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errors.New("credential channel closed by gateway")
			}
			return fmt.Errorf("read credential update: %w", err)
		}

		if !injector.Apply(msg) {
			log.Debug("ignoring credential channel message", "type", msg.Type)
			continue
		}
		log.Info("origin credential updated")
		if opts.OnUpdate != nil {
			opts.OnUpdate(msg)
		}
	}
}

func deadlineSoon() time.Time {
	return time.Now().Add(time.Second)
}
