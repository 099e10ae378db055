package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/chris8332558/chris-metac-bot-template/internal/forecast"
	"github.com/chris8332558/chris-metac-bot-template/internal/logging"
)

// Publisher emits completed forecast records to a Kafka topic. A nil
// publisher or nil writer turns publishing into a no-op, so callers can
// run without a broker.
type Publisher struct {
	writer *kafka.Writer
	log    zerolog.Logger
}

// NewPublisher wraps an already configured writer.
func NewPublisher(writer *kafka.Writer) *Publisher {
	return &Publisher{writer: writer, log: logging.Component("queue")}
}

// PublishForecast writes one forecast record to the topic.
func (p *Publisher) PublishForecast(ctx context.Context, rec forecast.Record) error {
	if p == nil || p.writer == nil {
		return nil
	}
	msg, err := forecastMessage(rec)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write forecast %s: %w", rec.RunID, err)
	}
	p.log.Debug().
		Str("run_id", rec.RunID).
		Int64("question_id", rec.QuestionID).
		Str("topic", p.writer.Topic).
		Msg("forecast published")
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// forecastMessage keys records by question and run so replays stay
// distinguishable per question.
func forecastMessage(rec forecast.Record) (kafka.Message, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal forecast %s: %w", rec.RunID, err)
	}
	key := fmt.Sprintf("%d-%s", rec.QuestionID, rec.RunID)
	return kafka.Message{Key: []byte(key), Value: payload}, nil
}
