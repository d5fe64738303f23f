package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"edurag/internal/apperr"
	"edurag/internal/collection"
	"edurag/internal/contextutil"
	"edurag/internal/service"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
)

// handleAsk handles the ask tool invocation
func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	collectionName, err := requireString(args, "collection")
	if err != nil {
		return nil, err
	}
	question, err := requireString(args, "question")
	if err != nil {
		return nil, err
	}

	answer, err := s.svc.Ask(ctx, service.AskRequest{
		Collection: collectionName,
		Question:   question,
		Backend:    getStringDefault(args, "backend", s.defaultBackend),
	})
	if err != nil {
		return toolError(ctx, "ask", err), nil
	}

	sources := make([]map[string]interface{}, 0, len(answer.Sources))
	for _, src := range answer.Sources {
		entry := map[string]interface{}{
			"chunk_id": src.ID,
			"source":   src.SourceID,
			"score":    src.Score,
			"text":     src.Text,
		}
		if src.Page > 0 {
			entry["page"] = src.Page
		}
		sources = append(sources, entry)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"answer":     answer.Text,
		"no_context": answer.NoContext,
		"sources":    sources,
	})), nil
}

// handleIngest handles the ingest tool invocation
func (s *Server) handleIngest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	collectionName, err := requireString(args, "collection")
	if err != nil {
		return nil, err
	}
	paths := getStringSlice(args, "paths")
	if len(paths) == 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "paths parameter is required", map[string]interface{}{
			"param":  "paths",
			"reason": "missing or empty",
		})
	}

	req := service.IngestRequest{
		Collection: collectionName,
		Paths:      paths,
		WindowSize: getIntDefault(args, "window_size", 0),
	}
	if _, ok := args["overlap"]; ok {
		overlap := getIntDefault(args, "overlap", 0)
		req.Overlap = &overlap
	}
	report, err := s.svc.Ingest(ctx, req)
	if err != nil && len(report.Documents) == 0 {
		return toolError(ctx, "ingest", err), nil
	}

	result := mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"collection": report.Collection,
		"succeeded":  report.Succeeded,
		"failed":     report.Failed,
		"documents":  report.Documents,
	}))
	// A batch where every document failed is an error for the caller.
	result.IsError = report.Failed > 0 && report.Succeeded == 0
	return result, nil
}

// handleFeedback handles the feedback tool invocation
func (s *Server) handleFeedback(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	chunkID, err := requireString(args, "chunk_id")
	if err != nil {
		return nil, err
	}
	direction, err := requireString(args, "direction")
	if err != nil {
		return nil, err
	}

	if err := s.svc.RecordFeedback(ctx, service.FeedbackRequest{ChunkID: chunkID, Direction: direction}); err != nil {
		return toolError(ctx, "feedback", err), nil
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"recorded":  true,
		"chunk_id":  chunkID,
		"direction": direction,
	})), nil
}

// handleSummarize handles the summarize tool invocation
func (s *Server) handleSummarize(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	collectionName, err := requireString(args, "collection")
	if err != nil {
		return nil, err
	}

	resp, err := s.svc.Summarize(ctx, service.SummarizeRequest{
		Collection:   collectionName,
		Sources:      getStringSlice(args, "sources"),
		Backend:      getStringDefault(args, "backend", s.defaultBackend),
		Instructions: getStringDefault(args, "instructions", ""),
	})
	if err != nil {
		return toolError(ctx, "summarize", err), nil
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"summary": resp.Summary,
		"cached":  resp.Cached,
	})), nil
}

// handleStats handles the stats tool invocation
func (s *Server) handleStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	collectionName, err := requireString(args, "collection")
	if err != nil {
		return nil, err
	}

	stats, err := s.svc.Stats(ctx, collectionName)
	if err != nil {
		return toolError(ctx, "stats", err), nil
	}
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

// toolError reports a failed call to the client with its error kind, so a failure
// is never mistaken for an answer.
func toolError(ctx context.Context, tool string, err error) *mcp.CallToolResult {
	kind := errorKind(err)
	contextutil.LoggerFromContext(ctx).WarnContext(ctx, "MCP tool failed", "tool", tool, "error_kind", kind, "error", err)
	return mcp.NewToolResultError(fmt.Sprintf("%s error: %v", kind, err))
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, collection.ErrInvalidKey):
		return apperr.KindValidation
	case errors.Is(err, service.ErrNotFound):
		return "not_found"
	default:
		return apperr.Kind(err)
	}
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func arguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	return args, nil
}

func requireString(args map[string]interface{}, key string) (string, error) {
	val, ok := args[key].(string)
	if !ok || val == "" {
		return "", newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param":  key,
			"reason": "missing or empty",
		})
	}
	return val, nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string array parameter, skipping non-string items.
func getStringSlice(args map[string]interface{}, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
