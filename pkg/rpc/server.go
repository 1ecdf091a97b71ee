// Package rpc provides the JSON-RPC server exposing the debug
// namespace.
package rpc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/alitto/pond/v2"
	"github.com/rs/cors"

	"github.com/stable-net/debugd/pkg/config"
	"github.com/stable-net/debugd/pkg/debug"
)

// JSON-RPC error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
	ErrCodeServerError    = -32000
)

// Version information.
const (
	ClientVersion = "debugd/v0.1.0"
)

// Request represents a JSON-RPC request.
type Request struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response represents a JSON-RPC response.
type Response struct {
	Jsonrpc string       `json:"jsonrpc"`
	ID      interface{}  `json:"id"`
	Result  interface{}  `json:"result,omitempty"`
	Error   *ErrorObject `json:"error,omitempty"`
}

// ErrorObject represents a JSON-RPC error.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Server exposes the debug service over JSON-RPC. Raw-retrieval methods
// run on the caller's goroutine; trace calls are funneled through a
// bounded worker pool so trace bursts cannot starve ordinary traffic.
type Server struct {
	api     debug.API
	traces  pond.ResultPool[interface{}]
	metrics *serverMetrics
	cors    *cors.Cors
}

// NewServer creates a new RPC server around the debug service.
func NewServer(api debug.API, cfg *config.Config) *Server {
	return &Server{
		api:     api,
		traces:  pond.NewResultPool[interface{}](cfg.TracePoolSize),
		metrics: newServerMetrics(),
		cors: cors.New(cors.Options{
			AllowedOrigins: []string{cfg.AllowOrigin},
			AllowedMethods: []string{http.MethodPost, http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
		}),
	}
}

// Handler returns the full HTTP handler: the JSON-RPC endpoint at /,
// metrics at /metrics, wrapped with CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", s)
	mux.Handle("/metrics", s.metrics.handler())
	return s.cors.Handler(mux)
}

// Close drains the trace pool.
func (s *Server) Close() {
	s.traces.StopAndWait()
}

// ServeHTTP handles HTTP requests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, nil, ErrCodeParseError, "Failed to read request body")
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, nil, ErrCodeParseError, "Parse error")
		return
	}

	s.metrics.requests.WithLabelValues(req.Method).Inc()

	result, rpcErr := s.handleMethod(r.Context(), req.Method, req.Params)
	if rpcErr != nil {
		s.metrics.errors.WithLabelValues(req.Method).Inc()
		s.writeError(w, req.ID, rpcErr.Code, rpcErr.Message)
		return
	}

	// Handle nil result specially to output "null" instead of omitting
	var resp interface{}
	if result == nil {
		resp = struct {
			Jsonrpc string      `json:"jsonrpc"`
			ID      interface{} `json:"id"`
			Result  interface{} `json:"result"`
		}{
			Jsonrpc: "2.0",
			ID:      req.ID,
			Result:  nil,
		}
	} else {
		resp = Response{
			Jsonrpc: "2.0",
			ID:      req.ID,
			Result:  result,
		}
	}

	json.NewEncoder(w).Encode(resp)
}

func (s *Server) writeError(w http.ResponseWriter, id interface{}, code int, message string) {
	resp := Response{
		Jsonrpc: "2.0",
		ID:      id,
		Error: &ErrorObject{
			Code:    code,
			Message: message,
		},
	}
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleMethod(ctx context.Context, method string, params json.RawMessage) (interface{}, *ErrorObject) {
	switch method {
	// debug_* methods
	case "debug_getRawHeader":
		return s.debugGetRawHeader(ctx, params)
	case "debug_getRawBlock":
		return s.debugGetRawBlock(ctx, params)
	case "debug_getRawTransaction":
		return s.debugGetRawTransaction(ctx, params)
	case "debug_getRawReceipts":
		return s.debugGetRawReceipts(ctx, params)
	case "debug_getBadBlocks":
		return s.debugGetBadBlocks(ctx, params)
	case "debug_traceCall":
		return s.debugTraceCall(ctx, params)

	// web3_* methods
	case "web3_clientVersion":
		return ClientVersion, nil

	default:
		return nil, &ErrorObject{Code: ErrCodeMethodNotFound, Message: "Method not found"}
	}
}
