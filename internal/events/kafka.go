package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/vadiminshakov/papertrade/internal/domain"
	"go.uber.org/zap"
)

// ledgerKey keeps every delta on one partition so consumers see commit order.
var ledgerKey = []byte("ledger")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher forwards deltas to a Kafka topic from a background goroutine.
// PublishDelta only enqueues; when the queue is full the delta is dropped and logged.
type KafkaPublisher struct {
	writer       messageWriter
	queue        chan domain.LedgerDelta
	logger       *zap.Logger
	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewKafkaWriter builds a writer in the same shape the trade producer uses.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
	}
}

// NewKafkaPublisher starts the forwarding loop. Close flushes the queue.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	return newKafkaPublisher(NewKafkaWriter(brokers, topic), 1024, logger), nil
}

func newKafkaPublisher(w messageWriter, buffer int, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &KafkaPublisher{
		writer:       w,
		queue:        make(chan domain.LedgerDelta, buffer),
		logger:       logger,
		writeTimeout: 10 * time.Second,
		done:         make(chan struct{}),
	}
	go p.loop()
	return p
}

func (p *KafkaPublisher) PublishDelta(d domain.LedgerDelta) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- d:
	default:
		p.logger.Warn("kafka queue full, delta dropped", zap.String("intent_id", d.IntentID))
	}
}

func (p *KafkaPublisher) loop() {
	defer close(p.done)
	for d := range p.queue {
		msg, err := Message(d)
		if err != nil {
			p.logger.Error("failed to encode delta", zap.String("intent_id", d.IntentID), zap.Error(err))
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
		err = p.writer.WriteMessages(ctx, msg)
		cancel()
		if err != nil {
			p.logger.Error("failed to publish delta", zap.String("intent_id", d.IntentID), zap.Error(err))
		}
	}
}

// Close stops accepting deltas, drains the queue and closes the writer.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	return p.writer.Close()
}

// Message encodes a delta as a Kafka message keyed for single-partition ordering.
func Message(d domain.LedgerDelta) (kafka.Message, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return kafka.Message{}, errors.Wrap(err, "marshal delta")
	}
	return kafka.Message{
		Key:   ledgerKey,
		Value: b,
		Time:  d.At,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(d.Kind)},
			{Key: "intent_id", Value: []byte(d.IntentID)},
		},
	}, nil
}
