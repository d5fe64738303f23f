package feedback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"edurag/internal/storage"
	"edurag/internal/storage/mocks"
)

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in      string
		want    Direction
		wantErr bool
	}{
		{in: "up", want: Up},
		{in: " DOWN ", want: Down},
		{in: "sideways", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDirection(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStore_RecordAndLookup(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil)

	require.NoError(t, s.Record(ctx, "a", Up))
	require.NoError(t, s.Record(ctx, "a", Down))
	require.NoError(t, s.Record(ctx, "a", Down))

	assert.Equal(t, Votes{Up: 1, Down: 2}, s.Lookup("a"))
	assert.Equal(t, int64(-1), s.Lookup("a").Net())
	assert.Equal(t, Votes{}, s.Lookup("unknown"))

	assert.ErrorIs(t, s.Record(ctx, "", Up), ErrEmptyChunkID)
	assert.Error(t, s.Record(ctx, "a", Direction(7)))
}

func TestStore_ConcurrentRecord(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.Record(ctx, "hot", Up)
		}()
		go func(i int) {
			defer wg.Done()
			_ = s.Lookup("hot")
			_ = s.Record(ctx, fmt.Sprintf("c%d", i%5), Down)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(50), s.Lookup("hot").Up)
	var downs int64
	for i := 0; i < 5; i++ {
		downs += s.Lookup(fmt.Sprintf("c%d", i)).Down
	}
	assert.Equal(t, int64(50), downs)
}

func TestStore_PersistsThroughSink(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockFeedbackStore(ctrl)
	ctx := context.Background()

	sink.EXPECT().Append(gomock.Any(), "a", storage.VoteDown).Return(nil)
	sink.EXPECT().Append(gomock.Any(), "b", storage.VoteUp).Return(errors.New("disk full"))

	s := NewStore(sink)
	require.NoError(t, s.Record(ctx, "a", Down))
	assert.Error(t, s.Record(ctx, "b", Up))

	assert.Equal(t, Votes{Down: 1}, s.Lookup("a"))
	assert.Equal(t, Votes{}, s.Lookup("b"), "failed persistence must not change counts")
}

func TestStore_Load(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockFeedbackStore(ctrl)
	sink.EXPECT().Totals(gomock.Any()).Return([]storage.FeedbackTotals{
		{ChunkID: "a", Up: 2, Down: 5},
	}, nil)

	s := NewStore(sink)
	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, Votes{Up: 2, Down: 5}, s.Lookup("a"))

	assert.NoError(t, NewStore(nil).Load(context.Background()))
}

func TestStore_LoadError(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockFeedbackStore(ctrl)
	sink.EXPECT().Totals(gomock.Any()).Return(nil, errors.New("boom"))

	assert.Error(t, NewStore(sink).Load(context.Background()))
}
