package seckill

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/acampos-dev/dealrush-backend/pkg/redis"
)

const (
	readNewID     = ">"
	readPendingID = "0"
	readBatchSize = 10
)

// Queue is the consumer-group view of the order stream. Producers append via
// the admission script; the queue only reads and acknowledges.
type Queue struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	block    time.Duration
}

// NewQueue builds a queue bound to one consumer identity within the group.
func NewQueue(client *redis.Client, stream, group, consumer string, block time.Duration) (*Queue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if stream == "" || group == "" || consumer == "" {
		return nil, errors.New("stream, group and consumer names are required")
	}
	if block <= 0 {
		block = 2 * time.Second
	}
	return &Queue{client: client, stream: stream, group: group, consumer: consumer, block: block}, nil
}

// EnsureGroup creates the consumer group if it does not exist yet.
func (q *Queue) EnsureGroup(ctx context.Context) error {
	return q.client.StreamEnsureGroup(ctx, q.stream, q.group)
}

// ReadNew blocks up to the configured window for entries this group has never
// delivered. A timeout yields an empty batch and no error.
func (q *Queue) ReadNew(ctx context.Context) ([]goredis.XMessage, error) {
	return q.client.StreamReadGroup(ctx, q.group, q.consumer, q.stream, readNewID, readBatchSize, q.block)
}

// ReadPending returns, without blocking, entries that were delivered to this
// consumer but never acknowledged. After a crash mid-handling the reservation
// is still here, which is what makes delivery at-least-once.
func (q *Queue) ReadPending(ctx context.Context) ([]goredis.XMessage, error) {
	return q.client.StreamReadGroup(ctx, q.group, q.consumer, q.stream, readPendingID, readBatchSize, -1)
}

// Ack marks a delivered entry as done so recovery sweeps stop seeing it.
func (q *Queue) Ack(ctx context.Context, id string) error {
	return q.client.StreamAck(ctx, q.stream, q.group, id)
}

// ParseReservation decodes a stream entry into a reservation. Entries written
// by anything other than the admission script come back as an error.
func ParseReservation(msg goredis.XMessage) (Reservation, error) {
	var res Reservation
	var err error
	if res.OrderID, err = fieldInt64(msg, fieldOrderID); err != nil {
		return Reservation{}, err
	}
	if res.VoucherID, err = fieldInt64(msg, fieldVoucherID); err != nil {
		return Reservation{}, err
	}
	if res.UserID, err = fieldInt64(msg, fieldUserID); err != nil {
		return Reservation{}, err
	}
	res.CreatedAt = entryTime(msg.ID)
	return res, nil
}

// entryTime extracts the millisecond timestamp prefix of a stream entry id.
// An unparsable id yields the zero time rather than an error.
func entryTime(id string) time.Time {
	dash := strings.IndexByte(id, '-')
	if dash <= 0 {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(id[:dash], 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func fieldInt64(msg goredis.XMessage, field string) (int64, error) {
	raw, ok := msg.Values[field]
	if !ok {
		return 0, fmt.Errorf("stream entry %s missing field %q", msg.ID, field)
	}
	str, ok := raw.(string)
	if !ok {
		return 0, fmt.Errorf("stream entry %s field %q is not a string", msg.ID, field)
	}
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("stream entry %s field %q: %w", msg.ID, field, err)
	}
	return val, nil
}
