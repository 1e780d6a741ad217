// Package mcp serves the KPI engine as Model Context Protocol tools over a
// newline-delimited JSON-RPC 2.0 stdio stream.
package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/blackwell-systems/kpiwatch/internal/kpi"
)

const protocolVersion = "2024-11-05"

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// Server is an MCP stdio server exposing the engine's tools.
type Server struct {
	tools      []toolDef
	index      map[string]int
	thresholds kpi.Thresholds
	version    string
	logger     *zap.Logger
}

type toolDef struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     toolHandler
}

type toolHandler func(args json.RawMessage) (any, error)

type jsonrpcRequest struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method"`
	Params  json.RawMessage  `json:"params,omitempty"`
}

type jsonrpcResponse struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Result  any              `json:"result,omitempty"`
	Error   *jsonrpcError    `json:"error,omitempty"`
}

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type toolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// toolsCallResult wraps a tool result as MCP text content.
type toolsCallResult struct {
	Content []mcpContent `json:"content"`
	IsError bool         `json:"isError"`
}

type mcpContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolListEntry struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// NewServer builds a server evaluating with t. A nil logger discards logs.
func NewServer(t kpi.Thresholds, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		index:      make(map[string]int),
		thresholds: t,
		version:    version,
		logger:     logger,
	}
	addTools(s)
	return s
}

func (s *Server) registerTool(def toolDef) {
	s.index[def.Name] = len(s.tools)
	s.tools = append(s.tools, def)
}

// Run reads requests from r and writes responses to w until ctx is
// cancelled or r reaches EOF. Only I/O failures are returned.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	bw := bufio.NewWriter(w)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	lines := make(chan []byte)
	errCh := make(chan error, 1)

	go func() {
		defer close(lines)
		for scanner.Scan() {
			line := bytes.Clone(scanner.Bytes())
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errCh <- err
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errCh:
					return fmt.Errorf("reading requests: %w", err)
				default:
					return nil
				}
			}
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			if err := s.handleLine(line, bw); err != nil {
				return fmt.Errorf("writing response: %w", err)
			}
		}
	}
}

func (s *Server) handleLine(line []byte, bw *bufio.Writer) error {
	var req jsonrpcRequest
	if err := json.Unmarshal(line, &req); err != nil {
		s.logger.Debug("unparseable request", zap.Error(err))
		return s.writeError(bw, nil, codeParseError, "Parse error")
	}

	// Notifications get no response.
	if req.ID == nil {
		s.logger.Debug("notification", zap.String("method", req.Method))
		return nil
	}
	if req.JSONRPC != "2.0" {
		return s.writeError(bw, req.ID, codeInvalidRequest, "Invalid Request")
	}

	resp := jsonrpcResponse{JSONRPC: "2.0", ID: req.ID}

	switch req.Method {
	case "initialize":
		resp.Result = map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]any{
				"tools": map[string]any{},
			},
			"serverInfo": map[string]any{
				"name":    "kpiwatch",
				"version": s.version,
			},
		}

	case "ping":
		resp.Result = map[string]any{}

	case "tools/list":
		entries := make([]toolListEntry, 0, len(s.tools))
		for _, t := range s.tools {
			entries = append(entries, toolListEntry{
				Name:        t.Name,
				Description: t.Description,
				InputSchema: t.InputSchema,
			})
		}
		resp.Result = map[string]any{"tools": entries}

	case "tools/call":
		var params toolsCallParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			resp.Error = &jsonrpcError{Code: codeInvalidParams, Message: "Invalid params"}
			break
		}
		resp.Result = s.callTool(params)

	default:
		resp.Error = &jsonrpcError{Code: codeMethodNotFound, Message: "Method not found"}
	}

	return s.writeResponse(bw, resp)
}

// callTool runs a tool. Tool failures are reported in-band with IsError.
func (s *Server) callTool(params toolsCallParams) toolsCallResult {
	i, ok := s.index[params.Name]
	if !ok {
		return errorResult(fmt.Sprintf("unknown tool: %s", params.Name))
	}

	args := params.Arguments
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage(`{}`)
	}

	result, err := s.tools[i].Handler(args)
	if err != nil {
		s.logger.Debug("tool failed", zap.String("tool", params.Name), zap.Error(err))
		return errorResult(err.Error())
	}

	data, err := json.Marshal(result)
	if err != nil {
		return errorResult(err.Error())
	}
	return toolsCallResult{Content: []mcpContent{{Type: "text", Text: string(data)}}}
}

func errorResult(msg string) toolsCallResult {
	return toolsCallResult{
		Content: []mcpContent{{Type: "text", Text: msg}},
		IsError: true,
	}
}

func (s *Server) writeError(bw *bufio.Writer, id *json.RawMessage, code int, message string) error {
	return s.writeResponse(bw, jsonrpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &jsonrpcError{Code: code, Message: message},
	})
}

// writeResponse writes resp as one line and flushes.
func (s *Server) writeResponse(bw *bufio.Writer, resp jsonrpcResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if _, err := bw.Write(data); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	return bw.Flush()
}
