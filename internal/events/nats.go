package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// subjectPrefix namespaces figura events on a shared NATS deployment.
const subjectPrefix = "figura.events."

// NATSBus implements Bus over a NATS connection so dashboards or other
// processes can consume the same event stream. Payloads are JSON.
type NATSBus struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

var _ Bus = (*NATSBus)(nil)

// NewNATSBus connects to the given NATS URL.
func NewNATSBus(url string, logger zerolog.Logger) (*NATSBus, error) {
	conn, err := nats.Connect(url,
		nats.Name("figura-events"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	return &NATSBus{
		conn:   conn,
		logger: logger.With().Str("component", "events_nats").Logger(),
	}, nil
}

// Publish marshals the event and publishes it on figura.events.<type>.
// Failures are logged, not returned: event delivery is best-effort and must
// never fail the mutation that produced it.
func (b *NATSBus) Publish(_ context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error().Err(err).Str("event_type", string(event.EventType())).Msg("failed to marshal event")
		return
	}

	if err := b.conn.Publish(subjectPrefix+string(event.EventType()), payload); err != nil {
		b.logger.Error().Err(err).Str("event_type", string(event.EventType())).Msg("failed to publish event")
	}
}

// Subscribe registers a handler for one event type. The raw payload is
// decoded into the concrete event struct for that type.
func (b *NATSBus) Subscribe(t Type, h Handler) func() {
	sub, err := b.conn.Subscribe(subjectPrefix+string(t), func(msg *nats.Msg) {
		event, err := decodeEvent(t, msg.Data)
		if err != nil {
			b.logger.Error().Err(err).Str("subject", msg.Subject).Msg("failed to decode event")
			return
		}
		h(context.Background(), event)
	})
	if err != nil {
		b.logger.Error().Err(err).Str("event_type", string(t)).Msg("failed to subscribe")
		return func() {}
	}

	return func() {
		if err := sub.Unsubscribe(); err != nil {
			b.logger.Warn().Err(err).Str("event_type", string(t)).Msg("failed to unsubscribe")
		}
	}
}

// Close drains the connection.
func (b *NATSBus) Close() error {
	return b.conn.Drain()
}

func decodeEvent(t Type, data []byte) (Event, error) {
	switch t {
	case TypeCartChanged:
		var e CartChanged
		return e, json.Unmarshal(data, &e)
	case TypeIdentityChanged:
		var e IdentityChanged
		return e, json.Unmarshal(data, &e)
	case TypeOrderCreated:
		var e OrderCreated
		return e, json.Unmarshal(data, &e)
	case TypeStockDepleted:
		var e StockDepleted
		return e, json.Unmarshal(data, &e)
	default:
		return nil, fmt.Errorf("unknown event type %q", t)
	}
}
