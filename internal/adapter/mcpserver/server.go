// Package mcpserver exposes note capture and search as Model Context
// Protocol tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"semnotes/internal/domain"
	"semnotes/internal/usecase"
)

// Server wraps the MCP server with the note use cases.
type Server struct {
	mcp          *gomcp.Server
	capture      *usecase.CaptureUseCase
	reindex      *usecase.ReindexUseCase
	search       *usecase.SearchUseCase
	notes        *usecase.NotesUseCase
	defaultOwner string
}

// NewServer creates an MCP server. Tools act for defaultOwner unless a call
// names another owner_id.
func NewServer(
	capture *usecase.CaptureUseCase,
	reindex *usecase.ReindexUseCase,
	search *usecase.SearchUseCase,
	notes *usecase.NotesUseCase,
	defaultOwner string,
	version string,
) (*Server, error) {
	if capture == nil || reindex == nil || search == nil || notes == nil {
		return nil, fmt.Errorf("all use cases are required")
	}

	s := &Server{
		mcp: gomcp.NewServer(
			&gomcp.Implementation{
				Name:    "semnotes",
				Version: version,
			},
			nil,
		),
		capture:      capture,
		reindex:      reindex,
		search:       search,
		notes:        notes,
		defaultOwner: defaultOwner,
	}
	s.registerTools()
	return s, nil
}

// Serve starts the MCP server in stdio mode.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcp.Run(ctx, &gomcp.StdioTransport{})
}

func (s *Server) registerTools() {
	s.mcp.AddTool(&gomcp.Tool{
		Name:        "capture_note",
		Description: "Save a note. The note is embedded immediately and becomes searchable by meaning.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"content": {"type": "string", "description": "Note text"},
				"owner_id": {"type": "string", "description": "Owner of the note (defaults to the server's owner)"}
			},
			"required": ["content"]
		}`),
	}, s.handleCapture)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "search_notes",
		Description: "Find notes by meaning. Returns notes ranked by similarity to the query, best first.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "What to look for"},
				"limit": {"type": "number", "description": "Maximum number of results (default 10)"},
				"threshold": {"type": "number", "description": "Minimum similarity between 0 and 1 (default 0.7)"},
				"owner_id": {"type": "string", "description": "Owner whose notes to search (defaults to the server's owner)"}
			},
			"required": ["query"]
		}`),
	}, s.handleSearch)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "reembed_note",
		Description: "Replace a note's text and regenerate its embedding. Pass the revision you last saw to avoid overwriting a newer edit.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"note_id": {"type": "string", "description": "ID of the note to edit"},
				"content": {"type": "string", "description": "New note text"},
				"revision": {"type": "number", "description": "Expected current revision (optional)"},
				"owner_id": {"type": "string", "description": "Owner of the note (defaults to the server's owner)"}
			},
			"required": ["note_id", "content"]
		}`),
	}, s.handleReembed)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "list_notes",
		Description: "List notes newest first. Use status \"failed\" to find notes that need reindexing.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"status": {"type": "string", "enum": ["ready", "pending", "failed"], "description": "Only list notes in this embedding state"},
				"limit": {"type": "number", "description": "Maximum number of notes (default: all)"},
				"owner_id": {"type": "string", "description": "Owner whose notes to list (defaults to the server's owner)"}
			}
		}`),
	}, s.handleList)
}

func (s *Server) owner(requested string) string {
	if requested != "" {
		return requested
	}
	return s.defaultOwner
}

func (s *Server) handleCapture(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args struct {
		Content string `json:"content"`
		OwnerID string `json:"owner_id"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return toolError("invalid arguments: %v", err), nil
	}

	id, err := s.capture.Capture(ctx, s.owner(args.OwnerID), args.Content)
	if err != nil {
		return kindError(err), nil
	}
	return jsonResult(map[string]string{"note_id": id})
}

func (s *Server) handleSearch(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args struct {
		Query     string   `json:"query"`
		Limit     *float64 `json:"limit"`
		Threshold *float64 `json:"threshold"`
		OwnerID   string   `json:"owner_id"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return toolError("invalid arguments: %v", err), nil
	}

	q := usecase.SearchQuery{
		OwnerID:   s.owner(args.OwnerID),
		Text:      args.Query,
		Threshold: args.Threshold,
	}
	if args.Limit != nil {
		limit := int(*args.Limit)
		q.Limit = &limit
	}

	results, err := s.search.Search(ctx, q)
	if err != nil {
		return kindError(err), nil
	}

	type hit struct {
		ID         string  `json:"id"`
		Content    string  `json:"content"`
		CreatedAt  string  `json:"created_at"`
		Similarity float64 `json:"similarity"`
	}
	hits := make([]hit, len(results))
	for i, r := range results {
		hits[i] = hit{
			ID:         r.Note.ID,
			Content:    r.Note.Content,
			CreatedAt:  r.Note.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			Similarity: r.Score,
		}
	}
	return jsonResult(map[string]any{"results": hits})
}

func (s *Server) handleReembed(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args struct {
		NoteID   string  `json:"note_id"`
		Content  string  `json:"content"`
		Revision float64 `json:"revision"`
		OwnerID  string  `json:"owner_id"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return toolError("invalid arguments: %v", err), nil
	}

	note, err := s.reindex.Reembed(ctx, s.owner(args.OwnerID), args.NoteID, args.Content, int64(args.Revision))
	if err != nil {
		return kindError(err), nil
	}
	return jsonResult(map[string]any{
		"note_id":  note.ID,
		"revision": note.Revision,
		"status":   string(note.Embedding.State),
	})
}

func (s *Server) handleList(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args struct {
		Status  string  `json:"status"`
		Limit   float64 `json:"limit"`
		OwnerID string  `json:"owner_id"`
	}
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			return toolError("invalid arguments: %v", err), nil
		}
	}

	notes, err := s.notes.List(ctx, s.owner(args.OwnerID), domain.EmbeddingState(args.Status), int(args.Limit))
	if err != nil {
		return kindError(err), nil
	}

	type item struct {
		ID       string `json:"id"`
		Content  string `json:"content"`
		Status   string `json:"status"`
		Error    string `json:"error,omitempty"`
		Revision int64  `json:"revision"`
	}
	items := make([]item, len(notes))
	for i, n := range notes {
		items[i] = item{
			ID:       n.ID,
			Content:  n.Content,
			Status:   string(n.Embedding.State),
			Error:    n.Embedding.Reason,
			Revision: n.Revision,
		}
	}
	return jsonResult(map[string]any{"notes": items})
}

func jsonResult(v any) (*gomcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: string(data)}},
	}, nil
}

// kindError reports a use case failure prefixed with its error kind.
func kindError(err error) *gomcp.CallToolResult {
	return toolError("%s: %v", domain.KindOf(err), err)
}

func toolError(format string, args ...any) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}
