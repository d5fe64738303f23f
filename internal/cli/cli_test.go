package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"edurag/internal/apperr"
	"edurag/internal/chunking"
	"edurag/internal/indexer"
	"edurag/internal/rag"
	"edurag/internal/service"
	"edurag/internal/service/mocks"
)

func run(t *testing.T, svc service.Service, args ...string) (string, error) {
	t.Helper()
	closed := false
	open := func(context.Context) (*Env, error) {
		return &Env{
			Service:        svc,
			DefaultBackend: "groq",
			APIPort:        "9000",
			Close:          func() error { closed = true; return nil },
		}, nil
	}
	root := NewRootCommand(open, "test")
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	if svc != nil && err == nil {
		assert.True(t, closed, "environment should be closed")
	}
	return buf.String(), err
}

func TestAskCmd(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	svc.EXPECT().
		Ask(gomock.Any(), service.AskRequest{Collection: "physics", Question: "What is inertia?", Backend: "groq"}).
		Return(rag.Answer{
			Text: "Resistance to change in motion.",
			Sources: []rag.Source{{
				Chunk: chunking.Chunk{ID: "notes.pdf:p3:c1", SourceID: "notes.pdf", Page: 3},
				Score: 0.91,
			}},
		}, nil)

	out, err := run(t, svc, "ask", "physics", "What is inertia?")
	require.NoError(t, err)
	assert.Contains(t, out, "Resistance to change in motion.")
	assert.Contains(t, out, "notes.pdf, page 3")
	assert.Contains(t, out, "id=notes.pdf:p3:c1")
}

func TestAskCmd_BackendFlagAndErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	svc.EXPECT().
		Ask(gomock.Any(), service.AskRequest{Collection: "physics", Question: "Q", Backend: "ollama"}).
		Return(rag.Answer{}, &apperr.GenerationError{Backend: "ollama", Err: errors.New("model missing")})

	_, err := run(t, svc, "ask", "--backend", "ollama", "physics", "Q")
	require.Error(t, err)
	assert.Equal(t, apperr.KindGeneration, apperr.Kind(err))
}

func TestAskCmd_RequiresArgs(t *testing.T) {
	_, err := run(t, nil, "ask", "physics")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 2 arg(s)")
}

func intPtr(v int) *int { return &v }

func TestIngestCmd(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	svc.EXPECT().
		Ingest(gomock.Any(), service.IngestRequest{Collection: "physics", Paths: []string{"a.pdf", "b.md"}, WindowSize: 800, Overlap: intPtr(40)}).
		Return(indexer.Report{
			Collection: "physics",
			Documents: []indexer.DocumentResult{
				{Path: "a.pdf", Pages: 2, Chunks: 5},
				{Path: "b.md", Error: "no text extracted"},
			},
			Succeeded: 1,
			Failed:    1,
		}, &apperr.IngestionError{Source: "b.md", Op: "load", Err: errors.New("no text extracted")})

	out, err := run(t, svc, "ingest", "--window-size", "800", "--overlap", "40", "physics", "a.pdf", "b.md")
	require.NoError(t, err)
	assert.Contains(t, out, "OK    a.pdf (2 pages, 5 chunks)")
	assert.Contains(t, out, "FAIL  b.md: no text extracted")
	assert.Contains(t, out, "1 succeeded, 1 failed")
}

func TestIngestCmd_AllFailed(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	svc.EXPECT().
		Ingest(gomock.Any(), gomock.Any()).
		Return(indexer.Report{
			Collection: "physics",
			Documents:  []indexer.DocumentResult{{Path: "a.pdf", Error: "embed failed"}},
			Failed:     1,
		}, &apperr.IngestionError{Source: "a.pdf", Op: "embed", Err: errors.New("embed failed")})

	_, err := run(t, svc, "ingest", "physics", "a.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 1 documents failed")
}

func TestIngestCmd_OverlapFlag(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want *int
	}{
		{name: "unset uses configured overlap", args: []string{"ingest", "physics", "a.pdf"}},
		{name: "explicit zero disables overlap", args: []string{"ingest", "--overlap", "0", "physics", "a.pdf"}, want: intPtr(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			svc := mocks.NewMockService(ctrl)
			svc.EXPECT().
				Ingest(gomock.Any(), service.IngestRequest{Collection: "physics", Paths: []string{"a.pdf"}, Overlap: tt.want}).
				Return(indexer.Report{Collection: "physics", Documents: []indexer.DocumentResult{{Path: "a.pdf"}}, Succeeded: 1}, nil)

			_, err := run(t, svc, tt.args...)
			require.NoError(t, err)
		})
	}
}

func TestFeedbackCmd(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	svc.EXPECT().
		RecordFeedback(gomock.Any(), service.FeedbackRequest{ChunkID: "notes.pdf:p3:c1", Direction: "down"}).
		Return(nil)

	out, err := run(t, svc, "feedback", "notes.pdf:p3:c1", "down")
	require.NoError(t, err)
	assert.Contains(t, out, "Recorded down vote")
}

func TestSummarizeCmd(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	svc.EXPECT().
		Summarize(gomock.Any(), service.SummarizeRequest{
			Collection:   "physics",
			Sources:      []string{"a.pdf", "b.pdf"},
			Backend:      "groq",
			Instructions: "focus on formulas",
		}).
		Return(service.SummarizeResponse{Summary: "F = ma."}, nil)

	out, err := run(t, svc, "summarize", "-i", "focus on formulas", "physics", "a.pdf", "b.pdf")
	require.NoError(t, err)
	assert.Contains(t, out, "F = ma.")
}

func TestStatsCmd(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	svc.EXPECT().
		Stats(gomock.Any(), "physics").
		Return(&indexer.CollectionStats{Collection: "physics", Documents: 3, Chunks: 12}, nil)

	out, err := run(t, svc, "stats", "physics")
	require.NoError(t, err)
	assert.Contains(t, out, `"documents": 3`)
	assert.Contains(t, out, `"chunks": 12`)
}

func TestDeleteCmd(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	svc.EXPECT().DeleteCollection(gomock.Any(), "physics").Return(nil)

	out, err := run(t, svc, "delete", "physics")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted collection physics")
}

func TestServeCmd_NotAvailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, err := run(t, mocks.NewMockService(ctrl), "serve")
	require.Error(t, err)
}

func TestServeCmd_UsesAPIPort(t *testing.T) {
	var gotAddr string
	open := func(context.Context) (*Env, error) {
		return &Env{
			APIPort: "9100",
			Serve: func(_ context.Context, addr string) error {
				gotAddr = addr
				return nil
			},
		}, nil
	}
	root := NewRootCommand(open, "test")
	root.SetArgs([]string{"serve"})
	require.NoError(t, root.Execute())
	assert.Equal(t, ":9100", gotAddr)
}

func TestOpenError(t *testing.T) {
	open := func(context.Context) (*Env, error) { return nil, errors.New("QDRANT_VECTOR_SIZE is required") }
	root := NewRootCommand(open, "test")
	root.SetArgs([]string{"stats", "physics"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QDRANT_VECTOR_SIZE")
}
