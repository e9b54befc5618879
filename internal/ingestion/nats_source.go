package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// StreamName is the JetStream stream carrying one message per block. The
// publisher assigns block height N to stream sequence N, so replay from a
// height is a replay from a stream sequence.
const StreamName = "STRAPPED_BLOCKS"

// NATSEventSource consumes block envelopes from JetStream in strict stream
// order. Ordered consumers recreate themselves on gaps, so delivery is
// gap-free without explicit acks.
type NATSEventSource struct {
	consumer jetstream.Consumer
	decode   DecodeFunc
	logger   zerolog.Logger
}

// NewNATSEventSource creates an ordered consumer on the block stream,
// starting at startHeight (0 means from the stream's first message).
func NewNATSEventSource(ctx context.Context, js jetstream.JetStream, subject string, startHeight uint32, logger zerolog.Logger) (*NATSEventSource, error) {
	cfg := jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{subject},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	}
	if startHeight > 0 {
		cfg.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		cfg.OptStartSeq = uint64(startHeight)
	}

	consumer, err := js.OrderedConsumer(ctx, StreamName, cfg)
	if err != nil {
		return nil, fmt.Errorf("create ordered consumer on %s: %w", subject, err)
	}

	return &NATSEventSource{
		consumer: consumer,
		decode:   DecodeLog,
		logger:   logger,
	}, nil
}

// NextEventBatch blocks until the next block envelope arrives, then decodes
// it. Undecodable logs inside the envelope are skipped; only a malformed
// envelope or a transport failure is an error.
func (s *NATSEventSource) NextEventBatch(ctx context.Context) (EventBatch, error) {
	for {
		if err := ctx.Err(); err != nil {
			return EventBatch{}, err
		}

		msg, err := s.consumer.Next(jetstream.FetchMaxWait(5 * time.Second))
		if errors.Is(err, nats.ErrTimeout) || errors.Is(err, jetstream.ErrNoMessages) {
			continue
		}
		if err != nil {
			return EventBatch{}, fmt.Errorf("fetch next block: %w", err)
		}

		batch, err := DecodeBlock(msg.Data(), s.decode, s.logger)
		if err != nil {
			return EventBatch{}, err
		}
		return batch, nil
	}
}

// EnsureStream creates the block stream if it doesn't exist.
func EnsureStream(ctx context.Context, js jetstream.JetStream, subject string) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{subject},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", StreamName, err)
	}
	log.Printf("INFO: ensured stream %s", StreamName)
	return nil
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("WARN: NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Println("INFO: NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
