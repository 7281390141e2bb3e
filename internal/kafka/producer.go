package kafka

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/models"
)

// Producer streams order and guest events to downstream consumers (the live
// dashboard and the seating sheet sync). All publishing is best effort;
// callers log failures and move on.
type Producer struct {
	orders *kafka.Writer
	guests *kafka.Writer
}

func NewProducer(brokers []string, ordersTopic, guestsTopic string) *Producer {
	return &Producer{
		orders: kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   ordersTopic,
		}),
		guests: kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   guestsTopic,
		}),
	}
}

// GuestChangeMessage is the wire shape on the guest-change topic.
type GuestChangeMessage struct {
	Change string                 `json:"change"`
	Guest  models.GuestAssignment `json:"guest"`
}

// PublishOrderCompleted streams a completed order, keyed by table so seat
// totals for one table stay ordered.
func (p *Producer) PublishOrderCompleted(order models.Order) error {
	msg, err := json.Marshal(order)
	if err != nil {
		return err
	}
	key := order.TableID
	if key == "" {
		key = order.ID
	}
	return p.orders.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(key),
		Value: msg,
	})
}

// PublishGuestChanged streams a guest mutation, keyed by table.
func (p *Producer) PublishGuestChanged(guest models.GuestAssignment, change string) error {
	msg, err := json.Marshal(GuestChangeMessage{Change: change, Guest: guest})
	if err != nil {
		return err
	}
	return p.guests.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(guest.TableID),
		Value: msg,
	})
}

func (p *Producer) Close() error {
	if err := p.orders.Close(); err != nil {
		return err
	}
	return p.guests.Close()
}

// EnsureTopicsExist creates the topics at startup so first publishes do not
// race auto-creation.
func EnsureTopicsExist(brokers []string, topics []string) error {
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	configs := make([]kafka.TopicConfig, 0, len(topics))
	for _, topic := range topics {
		configs = append(configs, kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
	}
	if err := controllerConn.CreateTopics(configs...); err != nil {
		return err
	}
	// Give the cluster a moment to settle metadata before first writes.
	time.Sleep(1 * time.Second)
	return nil
}
