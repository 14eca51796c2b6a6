package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fetchkit/fetchkit/internal/acquire"
	"github.com/fetchkit/fetchkit/internal/capability"
	"github.com/fetchkit/fetchkit/internal/fetch"
	"github.com/fetchkit/fetchkit/internal/history"
	"github.com/fetchkit/fetchkit/internal/search"
)

const (
	serverName      = "fetchkit"
	serverVersion   = "1.0.0"
	protocolVersion = "2024-11-05"
)

// Acquirer is the slice of the orchestrator the protocol surface needs.
type Acquirer interface {
	Acquire(ctx context.Context, request fetch.Request) (acquire.Result, error)
	Capabilities() capability.Set
}

// Searcher backs the web_search tool. A nil Searcher keeps the tool
// advertised but answering with a not-configured error.
type Searcher interface {
	Search(ctx context.Context, query string, num int, language string) ([]search.Result, error)
}

// Config bounds per-call tool behavior.
type Config struct {
	MaxURLsPerCall    int
	DefaultTimeout    time.Duration
	DefaultNumResults int
}

// Server handles MCP protocol requests.
type Server struct {
	acquirer Acquirer
	searcher Searcher
	recorder history.Recorder
	cfg      Config
	logger   *zap.Logger
}

// NewServer creates an MCP server over the given orchestrator. searcher may
// be nil when no search backend is configured.
func NewServer(acquirer Acquirer, searcher Searcher, recorder history.Recorder, cfg Config, logger *zap.Logger) *Server {
	if recorder == nil {
		recorder = history.Noop{}
	}
	if cfg.MaxURLsPerCall <= 0 {
		cfg.MaxURLsPerCall = 50
	}
	if cfg.DefaultNumResults <= 0 {
		cfg.DefaultNumResults = 15
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		acquirer: acquirer,
		searcher: searcher,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger,
	}
}

// HandleRequest processes one MCP request. It returns nil for
// notifications (requests without an ID), which require no response.
func (s *Server) HandleRequest(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req.ID)
	case "tools/list":
		return s.handleToolsList(req.ID)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  json.RawMessage(`"pong"`),
		}
	}

	if req.ID == nil {
		return nil
	}
	return errorResponse(req.ID, MethodNotFound, "Method not found")
}

func (s *Server) handleInitialize(id any) *Response {
	return resultResponse(id, map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    serverName,
			"version": serverVersion,
		},
	})
}

func (s *Server) handleToolsList(id any) *Response {
	return resultResponse(id, map[string]any{"tools": allTools()})
}

func (s *Server) handleToolsCall(ctx context.Context, req *Request) *Response {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, InvalidParams, "Invalid parameters")
	}

	switch params.Name {
	case "web_fetch":
		return s.handleWebFetch(ctx, req.ID, params.Arguments)
	case "web_search":
		return s.handleWebSearch(ctx, req.ID, params.Arguments)
	case "fetch_status":
		return s.handleFetchStatus(req.ID)
	default:
		return errorResponse(req.ID, InvalidParams, "Unknown tool: "+params.Name)
	}
}

type webSearchArgs struct {
	Query      string `json:"query"`
	NumResults int    `json:"num_results"`
	Language   string `json:"language"`
}

func (s *Server) handleWebSearch(ctx context.Context, id any, arguments json.RawMessage) *Response {
	var args webSearchArgs
	if err := json.Unmarshal(arguments, &args); err != nil {
		return errorResponse(id, InvalidParams, "Invalid arguments: "+err.Error())
	}
	if args.Query == "" {
		return errorResponse(id, InvalidParams, "query is required")
	}
	num := args.NumResults
	if num <= 0 {
		num = s.cfg.DefaultNumResults
	}

	searchErr := func(err error) *Response {
		return toolResult(id, map[string]any{
			"query":         args.Query,
			"total_results": 0,
			"results":       []search.Result{},
			"status":        "error",
			"message":       err.Error(),
		}, true)
	}

	if s.searcher == nil {
		return searchErr(search.ErrNotConfigured)
	}
	results, err := s.searcher.Search(ctx, args.Query, num, args.Language)
	if err != nil {
		s.logger.Warn("web search failed", zap.String("query", args.Query), zap.Error(err))
		return searchErr(err)
	}

	status := "success"
	if len(results) == 0 {
		status = "no_results"
	}
	if results == nil {
		results = []search.Result{}
	}
	return toolResult(id, map[string]any{
		"query":         args.Query,
		"total_results": len(results),
		"results":       results,
		"status":        status,
	}, false)
}

// urlList accepts either a single URL string or an array of URLs.
type urlList []string

func (u *urlList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*u = urlList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return errors.New("url must be a string or an array of strings")
	}
	*u = urlList(many)
	return nil
}

type webFetchArgs struct {
	URL          urlList           `json:"url"`
	PreferJS     bool              `json:"prefer_js_rendering"`
	TimeoutMs    int               `json:"timeout_ms"`
	ExtractLinks *bool             `json:"extract_links"`
	Headers      map[string]string `json:"headers"`
}

type fetchResultDTO struct {
	URL         string   `json:"url"`
	FinalURL    string   `json:"final_url,omitempty"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Content     string   `json:"content"`
	Encoding    string   `json:"encoding,omitempty"`
	WordCount   int      `json:"word_count"`
	Links       []string `json:"links"`
	StatusCode  int      `json:"status_code,omitempty"`
	Renderer    string   `json:"renderer,omitempty"`
	Transport   string   `json:"transport,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
	Status      string   `json:"status"`
	Error       string   `json:"error,omitempty"`
	ErrorKind   string   `json:"error_kind,omitempty"`
}

func (s *Server) handleWebFetch(ctx context.Context, id any, arguments json.RawMessage) *Response {
	var args webFetchArgs
	if err := json.Unmarshal(arguments, &args); err != nil {
		return errorResponse(id, InvalidParams, "Invalid arguments: "+err.Error())
	}
	if len(args.URL) == 0 {
		return errorResponse(id, InvalidParams, "url is required")
	}
	if len(args.URL) > s.cfg.MaxURLsPerCall {
		return errorResponse(id, InvalidParams,
			fmt.Sprintf("too many URLs: %d exceeds the limit of %d", len(args.URL), s.cfg.MaxURLsPerCall))
	}

	timeout := s.cfg.DefaultTimeout
	if args.TimeoutMs > 0 {
		timeout = time.Duration(args.TimeoutMs) * time.Millisecond
	}
	includeLinks := args.ExtractLinks == nil || *args.ExtractLinks

	results := make([]fetchResultDTO, 0, len(args.URL))
	succeeded := 0
	for _, rawURL := range args.URL {
		dto := s.fetchOne(ctx, fetch.Request{
			URL:      rawURL,
			Timeout:  timeout,
			PreferJS: args.PreferJS,
			Headers:  toHTTPHeaders(args.Headers),
		}, includeLinks)
		if dto.Status == "success" {
			succeeded++
		}
		results = append(results, dto)
	}

	status := "success"
	if succeeded == 0 {
		status = "error"
	}
	return toolResult(id, map[string]any{
		"total_urls":         len(args.URL),
		"successful_fetches": succeeded,
		"results":            results,
		"status":             status,
	}, succeeded == 0)
}

func (s *Server) fetchOne(ctx context.Context, request fetch.Request, includeLinks bool) fetchResultDTO {
	result, err := s.acquirer.Acquire(ctx, request)
	s.recordHistory(ctx, request, result, err)

	if err != nil {
		dto := fetchResultDTO{
			URL:    request.URL,
			Links:  []string{},
			Status: "error",
			Error:  err.Error(),
		}
		var acqErr *fetch.AcquisitionError
		if errors.As(err, &acqErr) {
			dto.ErrorKind = string(acqErr.Kind)
		}
		return dto
	}

	links := result.Content.Links
	if !includeLinks {
		links = []string{}
	}
	return fetchResultDTO{
		URL:         request.URL,
		FinalURL:    result.FinalURL,
		Title:       result.Content.Title,
		Description: result.Content.Description,
		Content:     result.Content.Text,
		Encoding:    result.Content.Encoding,
		WordCount:   result.Content.WordCount,
		Links:       links,
		StatusCode:  result.StatusCode,
		Renderer:    string(result.Renderer),
		Transport:   string(result.Transport),
		Warnings:    result.Content.Warnings,
		Status:      "success",
	}
}

func (s *Server) handleFetchStatus(id any) *Response {
	caps := s.acquirer.Capabilities()
	return toolResult(id, map[string]any{
		"http2": map[string]any{
			"state":   caps.HTTP2.State(),
			"version": caps.HTTP2.Version,
			"reason":  caps.HTTP2.Reason,
		},
		"js_rendering": map[string]any{
			"state":   caps.JSRendering.State(),
			"version": caps.JSRendering.Version,
			"reason":  caps.JSRendering.Reason,
		},
	}, false)
}

// recordHistory writes the audit row best-effort; failures are logged and
// never propagate to the tool caller.
func (s *Server) recordHistory(ctx context.Context, request fetch.Request, result acquire.Result, err error) {
	entry := history.Entry{
		ID:         uuid.New(),
		URL:        request.URL,
		FinalURL:   result.FinalURL,
		StatusCode: result.StatusCode,
		Renderer:   string(result.Renderer),
		Transport:  string(result.Transport),
		DurationMs: result.Elapsed.Milliseconds(),
		FetchedAt:  time.Now().UTC(),
	}
	var acqErr *fetch.AcquisitionError
	if errors.As(err, &acqErr) {
		entry.ErrorKind = string(acqErr.Kind)
	}
	if recErr := s.recorder.Record(ctx, entry); recErr != nil {
		s.logger.Warn("history record failed", zap.Error(recErr))
	}
}

func toHTTPHeaders(headers map[string]string) http.Header {
	if len(headers) == 0 {
		return nil
	}
	h := http.Header{}
	for key, value := range headers {
		h.Set(key, value)
	}
	return h
}

// toolResult wraps a tool payload in the MCP content envelope.
func toolResult(id any, payload any, isError bool) *Response {
	text, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return errorResponse(id, InternalError, "Failed to marshal result: "+err.Error())
	}
	return resultResponse(id, map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": string(text)},
		},
		"isError": isError,
	})
}

func resultResponse(id any, result any) *Response {
	raw, err := json.Marshal(result)
	if err != nil {
		return errorResponse(id, InternalError, "Failed to marshal result: "+err.Error())
	}
	return &Response{JSONRPC: "2.0", ID: id, Result: json.RawMessage(raw)}
}

func errorResponse(id any, code int, message string) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error: &ErrorObject{
			Code:    code,
			Message: message,
		},
	}
}
