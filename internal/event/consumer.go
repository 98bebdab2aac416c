package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"rank-service/internal/models"

	"github.com/rabbitmq/amqp091-go"
)

type Consumer interface {
	Start() error
	Close() error
}

// RoleChangeHandler is the reconciliation entry point fed by the gateway's
// membership events.
type RoleChangeHandler interface {
	HandleRoleChange(ctx context.Context, ev models.MemberRolesChangedEvent) error
}

type EventConsumer struct {
	conn       *amqp091.Connection
	channel    *amqp091.Channel
	queueName  string
	reconciler RoleChangeHandler
	shutdown   chan struct{}
	wg         sync.WaitGroup
	enabled    bool
}

func NewEventConsumer(rabbitURI, queueName string, reconciler RoleChangeHandler) (*EventConsumer, error) {
	if rabbitURI == "" {
		log.Println("Warning: RabbitMQ URI is empty, event consumption is disabled")
		return &EventConsumer{
			reconciler: reconciler,
			shutdown:   make(chan struct{}),
			enabled:    false,
		}, nil
	}

	conn, err := amqp091.Dial(rabbitURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	err = channel.Qos(
		10,    // prefetch count
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	return &EventConsumer{
		conn:       conn,
		channel:    channel,
		queueName:  queueName,
		reconciler: reconciler,
		shutdown:   make(chan struct{}),
		enabled:    true,
	}, nil
}

func (c *EventConsumer) Start() error {
	if !c.enabled {
		log.Println("Event consumption is disabled, not starting consumer")
		return nil
	}

	err := c.channel.ExchangeDeclare(
		gatewayExchange, // name
		"topic",         // type
		true,            // durable
		false,           // auto-deleted
		false,           // internal
		false,           // no-wait
		nil,             // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", gatewayExchange, err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	err = c.channel.QueueBind(
		c.queueName,      // queue name
		"member.roles.#", // routing key
		gatewayExchange,  // exchange
		false,            // no-wait
		nil,              // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to bind queue to exchange %s: %w", gatewayExchange, err)
	}

	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("failed to register a consumer: %w", err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consume(msgs)
	}()

	log.Printf("Event consumer started, queue %s bound to %s", c.queueName, gatewayExchange)
	return nil
}

func (c *EventConsumer) consume(msgs <-chan amqp091.Delivery) {
	for {
		select {
		case <-c.shutdown:
			log.Println("Stopping event consumer")
			return
		case msg, ok := <-msgs:
			if !ok {
				log.Println("Message channel closed")
				return
			}

			err := c.processMessage(msg)
			if err != nil {
				// Only record-store failures reach this path; requeue so the
				// probation record catches up once the store returns.
				// Redelivery is unbounded, a dead-letter policy on the queue
				// is the cap during a persistent outage.
				log.Printf("Error processing message: %v", err)
				if err := msg.Nack(false, true); err != nil {
					log.Printf("Error NACKing message: %v", err)
				}
			} else {
				if err := msg.Ack(false); err != nil {
					log.Printf("Error ACKing message: %v", err)
				}
			}
		}
	}
}

func (c *EventConsumer) processMessage(msg amqp091.Delivery) error {
	switch msg.RoutingKey {
	case RoutingKeyMemberRolesUpdated:
		return c.handleMemberRolesUpdated(msg.Body)
	default:
		log.Printf("Unknown routing key: %s", msg.RoutingKey)
		return nil // Acknowledge the message to avoid requeuing
	}
}

func (c *EventConsumer) handleMemberRolesUpdated(body []byte) error {
	var ev models.MemberRolesChangedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		// Requeueing a poison message loops forever; log and drop it.
		log.Printf("Failed to unmarshal role change event: %v", err)
		return nil
	}
	if ev.MemberID == "" {
		log.Printf("Role change event without member ID, dropping")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return c.reconciler.HandleRoleChange(ctx, ev)
}

func (c *EventConsumer) Close() error {
	if !c.enabled {
		return nil
	}

	close(c.shutdown)
	c.wg.Wait()

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			log.Printf("Error closing RabbitMQ channel: %v", err)
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			return fmt.Errorf("error closing RabbitMQ connection: %w", err)
		}
	}
	return nil
}
