package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
	"github.com/arturoeanton/go-english-tutor/internal/middleware"
	"github.com/arturoeanton/go-english-tutor/internal/sanitize"
	"github.com/arturoeanton/go-english-tutor/internal/service"
)

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternal       = -32603
)

// DefaultUser owns sessions opened through MCP without an explicit user_id.
const DefaultUser = "mcp"

// Server implements the Model Context Protocol (MCP) server.
// It exposes the tutor as tools for external AI agents.
type Server struct {
	tutor     *service.TutorService
	knowledge *service.KnowledgeService
	audit     middleware.AuditWriter
	port      string
	topK      int
}

// NewServer creates a new MCP server.
func NewServer(tutor *service.TutorService, knowledge *service.KnowledgeService, audit middleware.AuditWriter, port string, topK int) *Server {
	if topK <= 0 {
		topK = 3
	}
	return &Server{
		tutor:     tutor,
		knowledge: knowledge,
		audit:     audit,
		port:      port,
		topK:      topK,
	}
}

// Tool represents an MCP tool definition.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC error.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type toolError struct {
	code int
	err  error
}

func (e *toolError) Error() string { return e.err.Error() }
func (e *toolError) Unwrap() error { return e.err }

func invalidParams(format string, args ...interface{}) error {
	return &toolError{code: codeInvalidParams, err: fmt.Errorf(format, args...)}
}

// Handler returns the MCP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", s.handleRPC)
	mux.HandleFunc("/mcp/sse", s.handleSSE)
	return mux
}

// Start serves MCP on the configured port until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("MCP server starting", "port", s.port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, codeParseError, "parse error")
		return
	}

	var result interface{}
	var err error

	switch req.Method {
	case "tools/list":
		result = s.listTools()
	case "tools/call":
		result, err = s.callTool(r.Context(), req.Params, r)
	case "initialize":
		result = map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]string{
				"name":    "english-tutor",
				"version": "1.0.0",
			},
			"capabilities": map[string]interface{}{
				"tools": map[string]bool{"listChanged": false},
			},
		}
	default:
		writeError(w, req.ID, codeMethodNotFound, "method not found")
		return
	}

	if err != nil {
		code := codeInternal
		var te *toolError
		if errors.As(err, &te) {
			code = te.code
		}
		writeError(w, req.ID, code, err.Error())
		return
	}

	writeResult(w, req.ID, result)
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: endpoint\ndata: /mcp\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	<-r.Context().Done()
}

func (s *Server) listTools() map[string]interface{} {
	tools := []Tool{
		{
			Name:        "ask_tutor",
			Description: "Ask the English tutor a question. Omit session_id to start a new session.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"message": {"type": "string", "description": "Learner message"},
					"session_id": {"type": "string", "description": "Existing session ID"},
					"user_id": {"type": "string", "description": "Learner ID for a new session"},
					"reflect": {"type": "boolean", "description": "Run the answer quality check"}
				},
				"required": ["message"]
			}`),
		},
		{
			Name:        "search_knowledge",
			Description: "Search the vocabulary, grammar and exercise corpus",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "Search query"},
					"k": {"type": "integer", "description": "Maximum results"},
					"kind": {"type": "string", "description": "vocabulary, grammar or exercise"}
				},
				"required": ["query"]
			}`),
		},
		{
			Name:        "knowledge_stats",
			Description: "Count indexed documents per source kind",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {}
			}`),
		},
		{
			Name:        "route_query",
			Description: "Show which tutor role would answer a message",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"message": {"type": "string", "description": "Learner message"}
				},
				"required": ["message"]
			}`),
		},
	}
	return map[string]interface{}{"tools": tools}
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage, r *http.Request) (interface{}, error) {
	var req struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, invalidParams("invalid params: %v", err)
	}
	if len(req.Arguments) == 0 {
		req.Arguments = json.RawMessage(`{}`)
	}

	s.recordCall(req.Name, r)

	switch req.Name {
	case "ask_tutor":
		return s.askTutor(ctx, req.Arguments)
	case "search_knowledge":
		return s.searchKnowledge(ctx, req.Arguments)
	case "knowledge_stats":
		stats, err := s.knowledge.Stats(ctx)
		if err != nil {
			return nil, err
		}
		return textResult(fmt.Sprintf("Indexed documents: %d (vocabulary %d, grammar %d, exercise %d)",
			stats.Total,
			stats.ByKind[domain.SourceVocabulary],
			stats.ByKind[domain.SourceGrammar],
			stats.ByKind[domain.SourceExercise],
		), map[string]interface{}{"stats": stats}), nil
	case "route_query":
		var args struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(req.Arguments, &args); err != nil {
			return nil, invalidParams("invalid arguments: %v", err)
		}
		clean := sanitize.Sanitize(args.Message)
		if err := clean.Err(); err != nil {
			return nil, &toolError{code: codeInvalidParams, err: err}
		}
		decision := service.Route(clean.Text)
		return textResult(fmt.Sprintf("Routed to %s", decision.Role), map[string]interface{}{"decision": decision}), nil
	default:
		return nil, &toolError{code: codeMethodNotFound, err: fmt.Errorf("unknown tool: %s", req.Name)}
	}
}

func (s *Server) askTutor(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var args struct {
		Message   string `json:"message"`
		SessionID string `json:"session_id"`
		UserID    string `json:"user_id"`
		Reflect   *bool  `json:"reflect"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, invalidParams("invalid arguments: %v", err)
	}

	sessionID := strings.TrimSpace(args.SessionID)
	if sessionID == "" {
		userID := args.UserID
		if userID == "" {
			userID = DefaultUser
		}
		session, err := s.tutor.Sessions().Open(ctx, userID)
		if err != nil {
			return nil, err
		}
		sessionID = session.ID
	}

	reply, err := s.tutor.Ask(ctx, sessionID, args.Message, service.AskOptions{Reflect: args.Reflect})
	if err != nil {
		var inputErr *sanitize.InputError
		if errors.As(err, &inputErr) {
			return nil, &toolError{code: codeInvalidParams, err: err}
		}
		return nil, err
	}
	return textResult(reply.Answer, map[string]interface{}{"reply": reply}), nil
}

func (s *Server) searchKnowledge(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var args struct {
		Query string `json:"query"`
		K     int    `json:"k"`
		Kind  string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, invalidParams("invalid arguments: %v", err)
	}
	if strings.TrimSpace(args.Query) == "" {
		return nil, invalidParams("query is required")
	}
	if args.K <= 0 {
		args.K = s.topK
	}

	var kind domain.SourceKind
	if args.Kind != "" {
		parsed, ok := domain.ParseSourceKind(args.Kind)
		if !ok {
			return nil, invalidParams("unknown kind: %s", args.Kind)
		}
		kind = parsed
	}

	result := s.knowledge.Search(ctx, args.Query, args.K, kind)
	if !result.Success && result.Err != nil {
		return nil, result.Err
	}

	var sb strings.Builder
	for i, hit := range result.Hits {
		fmt.Fprintf(&sb, "[%d] (%s, score %.3f) %s\n", i+1, hit.Document.SourceKind, hit.CombinedScore, hit.Document.Text)
	}
	if sb.Len() == 0 {
		sb.WriteString("No matching material.")
	}
	return textResult(strings.TrimRight(sb.String(), "\n"), map[string]interface{}{"hits": result.Hits}), nil
}

func (s *Server) recordCall(tool string, r *http.Request) {
	details, _ := json.Marshal(map[string]string{"tool": tool})
	if err := s.audit.WriteAudit(DefaultUser, domain.AuditActionMCPCall, "mcp", tool, string(details), r.RemoteAddr, r.UserAgent()); err != nil {
		slog.Error("failed to write audit log", "error", err)
	}
}

func textResult(text string, extra map[string]interface{}) map[string]interface{} {
	result := map[string]interface{}{
		"content": []map[string]interface{}{
			{"type": "text", "text": text},
		},
	}
	for k, v := range extra {
		result[k] = v
	}
	return result
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, id interface{}, code int, message string) {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
