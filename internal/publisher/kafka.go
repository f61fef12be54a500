// Package publisher forwards written bulletin rows to a message sink.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fjacquet/aqi-bulletin/internal/dateutils"
	"fjacquet/aqi-bulletin/internal/logging"
	"fjacquet/aqi-bulletin/internal/models"

	kafkago "github.com/segmentio/kafka-go"
)

// Publisher delivers a committed bulletin table downstream.
type Publisher interface {
	Publish(ctx context.Context, table models.BulletinTable) error
	Close() error
}

// MessageWriter is the subset of *kafkago.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// message is the JSON payload of one published row.
type message struct {
	Date string `json:"date"`
	models.BulletinRow
}

// KafkaPublisher produces one message per bulletin row.
type KafkaPublisher struct {
	writer MessageWriter
	topic  string
	logger logging.Logger
}

// NewKafkaPublisher creates a producer for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string, logger logging.Logger) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return NewKafkaPublisherWithWriter(w, topic, logger)
}

// NewKafkaPublisherWithWriter wraps an existing writer.
func NewKafkaPublisherWithWriter(w MessageWriter, topic string, logger logging.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic, logger: logger}
}

// Publish serializes every row of table and writes them in one batch.
func (p *KafkaPublisher) Publish(ctx context.Context, table models.BulletinTable) error {
	if len(table.Rows) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(table.Rows))
	for i, row := range table.Rows {
		msg, err := serializeToMessage(table.Date, row)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish bulletin rows: %w", err)
	}
	p.logger.Info("Published bulletin rows",
		logging.F(logging.FieldTopic, p.topic),
		logging.F(logging.FieldDate, dateutils.ToISODate(table.Date)),
		logging.F(logging.FieldCount, len(msgs)))
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func serializeToMessage(date time.Time, row models.BulletinRow) (kafkago.Message, error) {
	day := dateutils.ToISODate(date)
	data, err := json.Marshal(message{Date: day, BulletinRow: row})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize bulletin row: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(day + "/" + row.City),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "bulletin_date", Value: []byte(day)},
			{Key: "level", Value: []byte(row.Level)},
		},
	}, nil
}
