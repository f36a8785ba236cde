package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// AMQPPublisher forwards dispatcher messages to a direct exchange, using the
// message type as routing key.
type AMQPPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

// DialAMQP connects to the broker, retrying up to retries times.
func DialAMQP(url string, retries int, delay time.Duration) (*amqp.Connection, error) {
	const op = "events.DialAMQP"
	if retries <= 0 {
		retries = 1
	}

	var (
		conn *amqp.Connection
		err  error
	)
	for i := 0; i < retries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		time.Sleep(delay)
	}
	return nil, fmt.Errorf("%s: %w", op, err)
}

// NewAMQPPublisher opens a channel and declares the exchange.
func NewAMQPPublisher(conn *amqp.Connection, exchange string, logger *zap.Logger) (*AMQPPublisher, error) {
	const op = "events.NewAMQPPublisher"
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%s: declare exchange: %w", op, err)
	}
	return &AMQPPublisher{conn: conn, channel: ch, exchange: exchange, logger: logger}, nil
}

// Register subscribes the publisher to every message type.
func (p *AMQPPublisher) Register(dispatcher Dispatcher) {
	for _, msgType := range AllMessageTypes {
		dispatcher.Subscribe(msgType, p.Handle)
	}
}

// Handle publishes msg as persistent JSON.
func (p *AMQPPublisher) Handle(_ context.Context, msg Message) error {
	const op = "events.AMQPPublisher.Handle"
	body, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = p.channel.Publish(p.exchange, string(msg.Type), false, false, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    msg.ID,
		Timestamp:    msg.Timestamp,
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		p.logger.Warn("amqp publish failed", zap.String("type", string(msg.Type)), zap.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() {
	if p == nil {
		return
	}
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// EncodeMessage renders msg in the wire format used on the exchange.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
