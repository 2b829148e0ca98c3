package notification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/segmentio/kafka-go"
	"github.com/sourcegraph/conc"

	"github.com/riskibarqy/courtstats/internal/platform/logging"
	"github.com/riskibarqy/courtstats/internal/platform/metrics"
	"github.com/riskibarqy/courtstats/internal/usecase"
)

const sourceKafka = "kafka"

var ErrMalformedNotification = errors.New("malformed notification")

type KafkaConfig struct {
	Brokers   []string
	Topic     string
	GroupID   string
	Consumers int
	MinBytes  int
	MaxBytes  int
	MaxWait   time.Duration
}

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Handler interface {
	Handle(ctx context.Context, source string, notification usecase.Notification) error
}

// NewKafkaReaders builds one group reader per configured consumer. The group
// spreads the topic partitions across them.
func NewKafkaReaders(cfg KafkaConfig) []MessageReader {
	consumers := max(cfg.Consumers, 1)
	minBytes := max(cfg.MinBytes, 1)
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	maxWait := cfg.MaxWait
	if maxWait <= 0 {
		maxWait = time.Second
	}

	readers := make([]MessageReader, 0, consumers)
	for range consumers {
		readers = append(readers, kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			GroupID:  cfg.GroupID,
			Topic:    cfg.Topic,
			MinBytes: minBytes,
			MaxBytes: maxBytes,
			MaxWait:  maxWait,
		}))
	}
	return readers
}

type KafkaConsumer struct {
	readers []MessageReader
	handler Handler
	metrics *metrics.Recorder
	logger  *logging.Logger
}

func NewKafkaConsumer(readers []MessageReader, handler Handler, recorder *metrics.Recorder, logger *logging.Logger) *KafkaConsumer {
	if logger == nil {
		logger = logging.Default()
	}
	return &KafkaConsumer{
		readers: readers,
		handler: handler,
		metrics: recorder,
		logger:  logger.Named("kafka"),
	}
}

// Run consumes until ctx is canceled or every reader stops. A failing event
// is logged and committed; it never stops its partition.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	errs := make([]error, len(c.readers))
	var wg conc.WaitGroup
	for i, reader := range c.readers {
		wg.Go(func() {
			errs[i] = c.consume(ctx, i, reader)
		})
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (c *KafkaConsumer) Close() error {
	errs := make([]error, 0, len(c.readers))
	for _, reader := range c.readers {
		if err := reader.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *KafkaConsumer) consume(ctx context.Context, worker int, reader MessageReader) error {
	c.logger.InfoContext(ctx, "kafka consumer started", "worker", worker)
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				c.logger.InfoContext(ctx, "kafka consumer stopped", "worker", worker)
				return nil
			}
			return crerr.Wrapf(err, "kafka fetch worker=%d", worker)
		}

		c.process(ctx, msg)

		if err := reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.WarnContext(ctx, "kafka commit failed",
				"worker", worker,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

func (c *KafkaConsumer) process(ctx context.Context, msg kafka.Message) {
	defer func() {
		if recovered := recover(); recovered != nil {
			c.metrics.Notification(sourceKafka, "panic")
			c.logger.ErrorContext(ctx, "kafka notification handler panicked",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"panic", fmt.Sprint(recovered),
			)
		}
	}()

	notification, err := DecodeNotification(msg.Value)
	if err != nil {
		c.metrics.Notification(sourceKafka, "malformed")
		c.logger.WarnContext(ctx, "kafka notification dropped",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return
	}

	if err := c.handler.Handle(ctx, sourceKafka, notification); err != nil {
		c.logger.ErrorContext(ctx, "kafka notification failed",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"player_id", notification.PlayerID,
			"team_id", notification.TeamID,
			"error", err,
		)
	}
}

type notificationWire struct {
	PlayerID *int64 `json:"playerId"`
	TeamID   *int64 `json:"teamId"`
}

// DecodeNotification parses {"playerId": int, "teamId": int}. Both fields are
// required.
func DecodeNotification(raw []byte) (usecase.Notification, error) {
	var w notificationWire
	if err := sonic.Unmarshal(raw, &w); err != nil {
		return usecase.Notification{}, fmt.Errorf("%w: %w", ErrMalformedNotification, crerr.Wrap(err, "decode"))
	}
	if w.PlayerID == nil || w.TeamID == nil {
		return usecase.Notification{}, fmt.Errorf("%w: playerId and teamId are required", ErrMalformedNotification)
	}
	return usecase.Notification{PlayerID: *w.PlayerID, TeamID: *w.TeamID}, nil
}
