package service

import (
    "context"
    "encoding/json"
    "sync"
    "time"

    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/iliyamo/seat-reservation-engine/internal/reservation"
)

// redisPublisher is the subset of *redis.Client used to publish.
type redisPublisher interface {
    Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// SeatEvent is the payload pushed on a session's seat channel.
type SeatEvent struct {
    SessionID string   `json:"session_id"`
    Seats     []string `json:"seats"`
    Status    string   `json:"status"`
    Reason    string   `json:"reason"`
    Version   uint64   `json:"version"`
    At        string   `json:"at"`
}

// SeatEvents fans seat changes out to Redis pub/sub, one channel per
// session, so every server instance and connected browser sees seats
// being claimed, released, expired and sold.  SeatsChanged never blocks:
// changes are queued and published by Run; when the queue is full the
// change is dropped, since clients also poll the seat map.
type SeatEvents struct {
    rdb    *redis.Client
    pub    redisPublisher
    prefix string
    queue  chan reservation.SeatChange
    log    *zap.Logger

    mu      sync.Mutex
    dropped int64
}

// NewSeatEvents returns a seat event feed backed by rdb.
func NewSeatEvents(rdb *redis.Client, prefix string, buffer int, log *zap.Logger) *SeatEvents {
    s := newSeatEvents(rdb, prefix, buffer, log)
    s.rdb = rdb
    return s
}

func newSeatEvents(pub redisPublisher, prefix string, buffer int, log *zap.Logger) *SeatEvents {
    if prefix == "" {
        prefix = "seats"
    }
    if buffer <= 0 {
        buffer = 256
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &SeatEvents{
        pub:    pub,
        prefix: prefix,
        queue:  make(chan reservation.SeatChange, buffer),
        log:    log,
    }
}

// Channel returns the pub/sub channel of a session.
func (s *SeatEvents) Channel(sessionID string) string {
    return s.prefix + ":" + sessionID
}

// SeatsChanged implements reservation.Listener.
func (s *SeatEvents) SeatsChanged(c reservation.SeatChange) {
    select {
    case s.queue <- c:
    default:
        s.mu.Lock()
        s.dropped++
        s.mu.Unlock()
        s.log.Warn("seat event dropped", zap.String("session_id", c.SessionID), zap.String("reason", c.Reason))
    }
}

// Dropped returns how many changes were discarded on a full queue.
func (s *SeatEvents) Dropped() int64 {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.dropped
}

// Run publishes queued changes until ctx is cancelled.
func (s *SeatEvents) Run(ctx context.Context) {
    for {
        select {
        case <-ctx.Done():
            return
        case c := <-s.queue:
            s.publish(ctx, c)
        }
    }
}

func (s *SeatEvents) publish(ctx context.Context, c reservation.SeatChange) {
    body, err := json.Marshal(toSeatEvent(c, time.Now()))
    if err != nil {
        s.log.Error("encode seat event failed", zap.Error(err))
        return
    }
    pctx, cancel := context.WithTimeout(ctx, time.Second)
    defer cancel()
    if err := s.pub.Publish(pctx, s.Channel(c.SessionID), body).Err(); err != nil {
        s.log.Warn("publish seat event failed", zap.String("session_id", c.SessionID), zap.Error(err))
    }
}

func toSeatEvent(c reservation.SeatChange, now time.Time) SeatEvent {
    seats := make([]string, len(c.Seats))
    for i, id := range c.Seats {
        seats[i] = id.Label()
    }
    return SeatEvent{
        SessionID: c.SessionID,
        Seats:     seats,
        Status:    string(c.Status),
        Reason:    c.Reason,
        Version:   c.Version,
        At:        now.UTC().Format(time.RFC3339Nano),
    }
}

// Subscribe streams raw event payloads of one session until ctx is
// cancelled or the returned stop function is called.
func (s *SeatEvents) Subscribe(ctx context.Context, sessionID string) (<-chan []byte, func(), error) {
    sub := s.rdb.Subscribe(ctx, s.Channel(sessionID))
    if _, err := sub.Receive(ctx); err != nil {
        _ = sub.Close()
        return nil, nil, err
    }
    out := make(chan []byte, 16)
    done := make(chan struct{})
    var once sync.Once
    stop := func() {
        once.Do(func() {
            close(done)
            _ = sub.Close()
        })
    }
    go func() {
        defer close(out)
        msgs := sub.Channel()
        for {
            select {
            case <-ctx.Done():
                stop()
                return
            case <-done:
                return
            case m, ok := <-msgs:
                if !ok {
                    return
                }
                select {
                case out <- []byte(m.Payload):
                case <-ctx.Done():
                    stop()
                    return
                case <-done:
                    return
                }
            }
        }
    }()
    return out, stop, nil
}
