package kafka

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/baekenough/kafka-lens-sub000/internal/metrics"
	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	// DefaultSampleLimit applies when a request carries no usable limit.
	DefaultSampleLimit = 100
	// MaxSampleLimit is the hard ceiling no request can exceed.
	MaxSampleLimit = 1000
	// DefaultPollTimeout bounds each iteration of the read loop.
	DefaultPollTimeout = 5 * time.Second

	// maxIdlePolls ends the loop after this many consecutive empty polls,
	// bounding wall-clock time when compaction or retention races the read.
	maxIdlePolls = 3
)

// FetchRequest asks for a bounded window of records from one partition.
// Validation happens inside the sampler, not at the caller.
type FetchRequest struct {
	Topic     string
	Partition int32
	Offset    int64
	Limit     int
}

// TimestampKind classifies where a record's timestamp came from.
type TimestampKind string

const (
	TimestampCreate    TimestampKind = "create_time"
	TimestampLogAppend TimestampKind = "log_append_time"
	TimestampNone      TimestampKind = "none"
)

// MessageHeader is one record header. Values go through the same
// decode-or-encode rule as keys and values; insertion order is preserved.
type MessageHeader struct {
	Key   string  `json:"key"`
	Value *string `json:"value"`
}

// SampledMessage is one record read by the sampling engine. Key and value
// are UTF-8 text when the raw bytes decode cleanly, base64 otherwise, and
// nil when the record carried none.
type SampledMessage struct {
	Topic         string          `json:"topic"`
	Partition     int32           `json:"partition"`
	Offset        int64           `json:"offset"`
	Timestamp     int64           `json:"timestamp"`
	TimestampKind TimestampKind   `json:"timestamp_kind"`
	Key           *string         `json:"key"`
	Value         *string         `json:"value"`
	Headers       []MessageHeader `json:"headers"`
}

// reader is the ephemeral per-request read handle. It exists as an
// interface so the bounded loop can be exercised without a broker.
type reader interface {
	PollFetches(ctx context.Context) kgo.Fetches
	EndOffset(ctx context.Context, topic string, partition int32) (int64, error)
	Close()
}

// Sampler reads a capped window of records from a single partition through
// a throwaway client scoped to one request.
type Sampler struct {
	registry    *Registry
	pollTimeout time.Duration
	newReader   func(desc ClusterDescriptor, topic string, partition int32, offset int64) (reader, error)
}

// NewSampler creates a sampler on the registry. A non-positive pollTimeout
// falls back to DefaultPollTimeout.
func NewSampler(registry *Registry, pollTimeout time.Duration) *Sampler {
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	return &Sampler{
		registry:    registry,
		pollTimeout: pollTimeout,
		newReader:   newPartitionReader,
	}
}

// EffectiveLimit clamps a requested limit to policy: the default when the
// request carries none (or a nonsensical one), the ceiling otherwise.
func EffectiveLimit(requested int) int {
	if requested <= 0 {
		return DefaultSampleLimit
	}
	if requested > MaxSampleLimit {
		return MaxSampleLimit
	}
	return requested
}

// Fetch reads at most the effective limit of records forward from the
// request offset. The operation is all-or-nothing: any failure discards
// records already collected. The ephemeral read handle is released on
// every exit path.
func (s *Sampler) Fetch(ctx context.Context, clusterID string, req FetchRequest) ([]SampledMessage, error) {
	const op = "sample_messages"

	desc, ok := s.registry.Descriptor(clusterID)
	if !ok {
		return nil, clusterNotFound(clusterID, op)
	}

	if req.Topic == "" {
		return nil, validationError(clusterID, op, errors.New("topic is required"))
	}
	if req.Partition < 0 {
		return nil, validationError(clusterID, op, fmt.Errorf("partition must be >= 0, got %d", req.Partition))
	}
	if req.Offset < 0 {
		return nil, validationError(clusterID, op, fmt.Errorf("start offset must be >= 0, got %d", req.Offset))
	}

	limit := EffectiveLimit(req.Limit)

	rd, err := s.newReader(desc, req.Topic, req.Partition, req.Offset)
	if err != nil {
		return nil, classify(clusterID, op, err)
	}
	defer rd.Close()

	end, err := rd.EndOffset(ctx, req.Topic, req.Partition)
	if err != nil {
		return nil, classify(clusterID, op, err)
	}
	if req.Offset >= end {
		return []SampledMessage{}, nil
	}

	messages, err := s.drain(ctx, rd, limit)
	if err != nil {
		return nil, classify(clusterID, op, err)
	}

	metrics.AddSampledMessages(clusterID, len(messages))
	slog.Debug("sampled messages",
		"cluster", clusterID,
		"topic", req.Topic,
		"partition", req.Partition,
		"offset", req.Offset,
		"count", len(messages),
	)
	return messages, nil
}

// drain runs the bounded read loop: poll with a short timeout, consume up
// to the remaining budget, and stop at the limit or after maxIdlePolls
// consecutive empty polls. An empty poll is ordinary loop state, never an
// error.
func (s *Sampler) drain(ctx context.Context, rd reader, limit int) ([]SampledMessage, error) {
	messages := make([]SampledMessage, 0, limit)
	idle := 0

	for len(messages) < limit && idle < maxIdlePolls {
		pollCtx, cancel := context.WithTimeout(ctx, s.pollTimeout)
		fetches := rd.PollFetches(pollCtx)
		cancel()

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := fetchError(fetches); err != nil {
			return nil, err
		}

		polled := 0
		fetches.EachRecord(func(r *kgo.Record) {
			polled++
			if len(messages) < limit {
				messages = append(messages, convertRecord(r))
			}
		})

		if polled == 0 {
			idle++
		} else {
			idle = 0
		}
	}

	return messages, nil
}

// fetchError extracts the first genuine failure from a poll result. A
// deadline on the per-iteration poll context is the normal empty-poll
// outcome and is not a failure.
func fetchError(fetches kgo.Fetches) error {
	for _, fe := range fetches.Errors() {
		if errors.Is(fe.Err, context.DeadlineExceeded) || errors.Is(fe.Err, context.Canceled) {
			continue
		}
		return fmt.Errorf("poll topic %q partition %d: %w", fe.Topic, fe.Partition, fe.Err)
	}
	return nil
}

func convertRecord(r *kgo.Record) SampledMessage {
	msg := SampledMessage{
		Topic:         r.Topic,
		Partition:     r.Partition,
		Offset:        r.Offset,
		Timestamp:     r.Timestamp.UnixMilli(),
		TimestampKind: timestampKind(r.Attrs.TimestampType()),
		Key:           decodeBytes(r.Key),
		Value:         decodeBytes(r.Value),
	}
	if len(r.Headers) > 0 {
		msg.Headers = make([]MessageHeader, 0, len(r.Headers))
		for _, h := range r.Headers {
			msg.Headers = append(msg.Headers, MessageHeader{
				Key:   h.Key,
				Value: decodeBytes(h.Value),
			})
		}
	}
	return msg
}

// decodeBytes renders raw bytes as text when they are valid UTF-8 and as
// base64 otherwise. Nil input stays nil; it is never an empty string.
func decodeBytes(b []byte) *string {
	if b == nil {
		return nil
	}
	var s string
	if utf8.Valid(b) {
		s = string(b)
	} else {
		s = base64.StdEncoding.EncodeToString(b)
	}
	return &s
}

func timestampKind(t int8) TimestampKind {
	switch t {
	case 0:
		return TimestampCreate
	case 1:
		return TimestampLogAppend
	default:
		return TimestampNone
	}
}

// partitionReader is the real ephemeral read handle: a uniquely named
// throwaway client assigned directly to one partition, with no group
// coordination.
type partitionReader struct {
	client *kgo.Client
	admin  *kadm.Client
}

func newPartitionReader(desc ClusterDescriptor, topic string, partition int32, offset int64) (reader, error) {
	opts, err := clientOpts(desc)
	if err != nil {
		return nil, err
	}

	opts = append(opts,
		kgo.ClientID("kafkalens-sample-"+uuid.NewString()),
		kgo.ConsumePartitions(map[string]map[int32]kgo.Offset{
			topic: {partition: kgo.NewOffset().At(offset)},
		}),
	)

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create sampling client: %w", err)
	}

	return &partitionReader{client: client, admin: kadm.NewClient(client)}, nil
}

func (p *partitionReader) PollFetches(ctx context.Context) kgo.Fetches {
	return p.client.PollFetches(ctx)
}

func (p *partitionReader) EndOffset(ctx context.Context, topic string, partition int32) (int64, error) {
	ends, err := p.admin.ListEndOffsets(ctx, topic)
	if err != nil {
		return 0, err
	}

	lo, ok := ends.Lookup(topic, partition)
	if !ok {
		return 0, kerr.UnknownTopicOrPartition
	}
	if lo.Err != nil {
		return 0, lo.Err
	}
	return lo.Offset, nil
}

func (p *partitionReader) Close() {
	p.client.Close()
}
