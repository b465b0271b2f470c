package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"slotify/internal/bookings"
	"slotify/pkg/logger"
)

// BookingConfirmedEvent is the wire shape for downstream consumers: email
// receipts, analytics, partner feeds.
type BookingConfirmedEvent struct {
	EventID     uuid.UUID `json:"event_id"`
	BookingID   uuid.UUID `json:"booking_id"`
	BookingRef  string    `json:"booking_ref"`
	ShopperID   string    `json:"shopper_id"`
	ItemID      uuid.UUID `json:"item_id"`
	ItemName    string    `json:"item_name"`
	TotalUnits  int       `json:"total_units"`
	Total       float64   `json:"total"`
	Currency    string    `json:"currency"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

type ProducerConfig struct {
	Brokers   []string
	Topic     string
	RetryMax  int
	TimeoutMs int
}

func DefaultProducerConfig() *ProducerConfig {
	return &ProducerConfig{
		Brokers:   []string{"localhost:9092"},
		Topic:     "booking-confirmed",
		RetryMax:  3,
		TimeoutMs: 10000,
	}
}

// Producer publishes booking confirmations to Kafka. Writes are idempotent
// and keyed by item so one item's events stay ordered on a partition.
type Producer struct {
	producer sarama.SyncProducer
	config   *ProducerConfig
	log      *logger.Logger
}

func NewProducer(config *ProducerConfig) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Retry.Max = config.RetryMax
	saramaConfig.Producer.Timeout = time.Duration(config.TimeoutMs) * time.Millisecond
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &Producer{
		producer: producer,
		config:   config,
		log:      logger.GetDefault(),
	}, nil
}

func (p *Producer) PublishBookingConfirmed(ctx context.Context, booking *bookings.Booking) error {
	event := BookingConfirmedEvent{
		EventID:     uuid.New(),
		BookingID:   booking.ID,
		BookingRef:  booking.BookingRef,
		ShopperID:   booking.ShopperID,
		ItemID:      booking.ItemID,
		ItemName:    booking.ItemName,
		TotalUnits:  booking.TotalUnits,
		Total:       booking.Total,
		Currency:    booking.Currency,
		ConfirmedAt: booking.CreatedAt,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal booking event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.config.Topic,
		Key:   sarama.StringEncoder(booking.ItemID.String()),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_id"), Value: []byte(event.EventID.String())},
			{Key: []byte("booking_ref"), Value: []byte(booking.BookingRef)},
			{Key: []byte("producer"), Value: []byte("slotify")},
		},
		Timestamp: booking.CreatedAt,
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to publish booking event: %w", err)
	}

	p.log.Info("booking event published",
		"topic", p.config.Topic,
		"partition", partition,
		"offset", offset,
		"booking_ref", booking.BookingRef,
	)
	return nil
}

func (p *Producer) Close() error {
	if p.producer == nil {
		return nil
	}
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	return nil
}
