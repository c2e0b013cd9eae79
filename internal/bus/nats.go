package bus

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSBus is the production Bus backed by a NATS connection. The broker handles
// reconnection transparently; we never observe it beyond the logged disconnect
// and reconnect callbacks, matching spec §4.5 ("reconnection is handled by the broker client").
type NATSBus struct {
	conn   *nats.Conn
	logger *zap.Logger
}

// Connect dials url and returns a ready-to-use Bus.
func Connect(url string, logger *zap.Logger) (*NATSBus, error) {
	conn, err := nats.Connect(
		url,
		nats.Name("iot-system"),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("bus reconnected", zap.String("url", c.ConnectedUrl()))
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("bus disconnected", zap.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("bus: connect to %s: %w", url, err)
	}

	return &NATSBus{conn: conn, logger: logger}, nil
}

// Publish sends payload on subject with the given headers. Requires a NATS
// server with headers support (nats-server >= 2.2), as does the original system.
func (b *NATSBus) Publish(_ context.Context, subject string, headers map[string]string, payload []byte) error {
	msg := nats.NewMsg(subject)
	msg.Data = payload
	for k, v := range headers {
		msg.Header.Set(k, v)
	}

	if err := b.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("bus: publish to %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a long-lived, async subscription. The handler is invoked
// on NATS's own dispatch goroutine; callers are expected to spawn their own task
// per message rather than process inline, so the dispatch goroutine is never
// blocked on inference or I/O.
func (b *NATSBus) Subscribe(subject string, handler Handler) (Subscription, error) {
	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		headers := make(map[string]string, len(msg.Header))
		for k := range msg.Header {
			headers[k] = msg.Header.Get(k)
		}
		handler(context.Background(), Message{
			Subject: msg.Subject,
			Headers: headers,
			Data:    msg.Data,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("bus: subscribe to %s: %w", subject, err)
	}
	return natsSubscription{sub}, nil
}

// Close drains and closes the underlying connection.
func (b *NATSBus) Close() error {
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return fmt.Errorf("bus: drain: %w", err)
	}
	return nil
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s natsSubscription) Unsubscribe() error {
	return s.sub.Unsubscribe()
}
