package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

var collectionProperty = map[string]interface{}{
	"type":        "string",
	"description": "Collection (subject) name, e.g. \"Physics 101\"",
}

var backendProperty = map[string]interface{}{
	"type":        "string",
	"description": "Answering backend",
	"enum":        []string{"groq", "gemini", "ollama"},
}

func askTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the documents ingested into a collection, citing the chunks used",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"collection": collectionProperty,
				"question": map[string]interface{}{
					"type":        "string",
					"description": "Question in natural language",
				},
				"backend": backendProperty,
			},
			Required: []string{"collection", "question"},
		},
	}
}

func ingestTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ingest",
		Description: "Load, chunk, embed and index local documents (PDF, DOCX, ODT, RTF, XLSX, Markdown, text) into a collection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"collection": collectionProperty,
				"paths": map[string]interface{}{
					"type":        "array",
					"description": "Absolute paths of the documents to ingest",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"window_size": map[string]interface{}{
					"type":        "integer",
					"description": "Pre-chunk window in characters (default from configuration)",
					"minimum":     1,
				},
				"overlap": map[string]interface{}{
					"type":        "integer",
					"description": "Characters shared by adjacent windows",
					"minimum":     0,
				},
			},
			Required: []string{"collection", "paths"},
		},
	}
}

func feedbackTool() mcp.Tool {
	return mcp.Tool{
		Name:        "feedback",
		Description: "Vote a retrieved chunk up or down; downvoted chunks rank lower in later answers",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"chunk_id": map[string]interface{}{
					"type":        "string",
					"description": "Chunk ID from an answer's sources",
				},
				"direction": map[string]interface{}{
					"type": "string",
					"enum": []string{"up", "down"},
				},
			},
			Required: []string{"chunk_id", "direction"},
		},
	}
}

func summarizeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "summarize",
		Description: "Summarize one or more ingested documents of a collection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"collection": collectionProperty,
				"sources": map[string]interface{}{
					"type":        "array",
					"description": "Source file names as shown in answer citations",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"backend": backendProperty,
				"instructions": map[string]interface{}{
					"type":        "string",
					"description": "Extra instructions for the summary, e.g. \"focus on formulas\"",
				},
			},
			Required: []string{"collection", "sources"},
		},
	}
}

func statsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "stats",
		Description: "Report document and chunk statistics for a collection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"collection": collectionProperty,
			},
			Required: []string{"collection"},
		},
	}
}
