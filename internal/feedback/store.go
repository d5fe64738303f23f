// Package feedback keeps per-chunk up/down vote counts used to bias retrieval ranking.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"edurag/internal/contextutil"
	"edurag/internal/storage"
)

// ErrEmptyChunkID is returned when a vote names no chunk.
var ErrEmptyChunkID = errors.New("chunk id is empty")

// Direction is the polarity of a vote.
type Direction int

const (
	Up Direction = iota + 1
	Down
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ParseDirection accepts "up" or "down", case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	default:
		return 0, fmt.Errorf("invalid feedback direction %q: want up or down", s)
	}
}

func (d Direction) vote() storage.Vote {
	if d == Down {
		return storage.VoteDown
	}
	return storage.VoteUp
}

// Votes is a point-in-time count of votes on one chunk.
type Votes struct {
	Up   int64 `json:"up"`
	Down int64 `json:"down"`
}

// Net returns upvotes minus downvotes.
func (v Votes) Net() int64 {
	return v.Up - v.Down
}

type counter struct {
	up   atomic.Int64
	down atomic.Int64
}

// Store is the process-wide reputation record. Lookups never block on writers;
// each count is read atomically, so a lookup may miss a vote recorded concurrently.
type Store struct {
	counters sync.Map // chunk ID -> *counter
	sink     storage.FeedbackStore
	logger   *slog.Logger
}

// NewStore creates a store. sink may be nil, in which case votes live only in memory.
func NewStore(sink storage.FeedbackStore) *Store {
	return &Store{sink: sink, logger: slog.Default()}
}

func (s *Store) getLogger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(contextutil.LoggerKey()).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	return s.logger
}

func (s *Store) counter(chunkID string) *counter {
	if c, ok := s.counters.Load(chunkID); ok {
		return c.(*counter)
	}
	c, _ := s.counters.LoadOrStore(chunkID, &counter{})
	return c.(*counter)
}

// Record adds one vote. With a sink configured the vote is persisted first and the
// in-memory count only changes if that succeeds.
func (s *Store) Record(ctx context.Context, chunkID string, d Direction) error {
	if chunkID == "" {
		return ErrEmptyChunkID
	}
	if d != Up && d != Down {
		return fmt.Errorf("invalid feedback direction %d", int(d))
	}

	if s.sink != nil {
		if err := s.sink.Append(ctx, chunkID, d.vote()); err != nil {
			return fmt.Errorf("persist feedback: %w", err)
		}
	}

	c := s.counter(chunkID)
	if d == Up {
		c.up.Add(1)
	} else {
		c.down.Add(1)
	}
	s.getLogger(ctx).DebugContext(ctx, "feedback recorded", "chunk_id", chunkID, "direction", d.String())
	return nil
}

// Lookup returns the current votes for chunkID. Unknown chunks have zero votes.
func (s *Store) Lookup(chunkID string) Votes {
	v, ok := s.counters.Load(chunkID)
	if !ok {
		return Votes{}
	}
	c := v.(*counter)
	return Votes{Up: c.up.Load(), Down: c.down.Load()}
}

// Load replays persisted totals from the sink, adding them to the in-memory counts.
// It is meant to run once at startup.
func (s *Store) Load(ctx context.Context) error {
	if s.sink == nil {
		return nil
	}
	totals, err := s.sink.Totals(ctx)
	if err != nil {
		return fmt.Errorf("load feedback: %w", err)
	}
	for _, t := range totals {
		c := s.counter(t.ChunkID)
		c.up.Add(t.Up)
		c.down.Add(t.Down)
	}
	s.getLogger(ctx).InfoContext(ctx, "feedback loaded", "chunks", len(totals))
	return nil
}
