// Package session owns the long-lived execution channel to the tool server.
//
// A Session is established once per process: it performs the MCP handshake,
// retrieves the advertised tool catalog, and then serves every orchestration
// run in the process, concurrent ones included. It is never torn down and
// recreated per request.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	mcpclient "github.com/mark3labs/mcp-go/client"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ManagementMO/dreamwell-assessment/agent/contract"
)

// DefaultCallTimeout bounds one tool invocation.
const DefaultCallTimeout = 45 * time.Second

// Session is the shared execution channel. The catalog is read-only after
// Open; Call is safe for concurrent use because the underlying client
// correlates requests and responses by id.
type Session struct {
	client      *mcpclient.Client
	catalog     []mcplib.Tool
	callTimeout time.Duration
	logger      zerolog.Logger
}

// Option customises a Session.
type Option func(*Session)

// WithCallTimeout overrides the per-invocation timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.callTimeout = d
		}
	}
}

// Open connects an in-process client to the tool server, performs the
// initialize handshake, and fetches the tool catalog. A failure here is an
// infrastructure fault: the process cannot serve requests without a session.
func Open(ctx context.Context, srv *mcpserver.MCPServer, opts ...Option) (*Session, error) {
	s := &Session{
		callTimeout: DefaultCallTimeout,
		logger:      log.With().Str("component", "session").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	cli, err := mcpclient.NewInProcessClient(srv)
	if err != nil {
		return nil, fmt.Errorf("create in-process client: %w", err)
	}
	if err := cli.Start(ctx); err != nil {
		return nil, fmt.Errorf("start execution session: %w", err)
	}

	initReq := mcplib.InitializeRequest{
		Params: mcplib.InitializeParams{
			ProtocolVersion: mcplib.LATEST_PROTOCOL_VERSION,
			ClientInfo:      mcplib.Implementation{Name: "influencer-agent", Version: "1.0.0"},
		},
	}
	if _, err := cli.Initialize(ctx, initReq); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("%w: session handshake: %v", contract.ErrUpstreamUnavailable, err)
	}

	toolsResult, err := cli.ListTools(ctx, mcplib.ListToolsRequest{})
	if err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("%w: fetch tool catalog: %v", contract.ErrUpstreamUnavailable, err)
	}

	s.client = cli
	s.catalog = toolsResult.Tools
	s.logger.Info().Int("tools", len(s.catalog)).Msg("execution session established")
	return s, nil
}

// Catalog returns the advertised tools. Callers must not mutate the slice.
func (s *Session) Catalog() []mcplib.Tool {
	return s.catalog
}

// Call executes one named operation through the session. Failures of any
// kind, transport errors and tool-reported errors alike, come back as an
// error observation in the ToolResult; Call itself never panics and never
// hangs past the per-call timeout.
func (s *Session) Call(ctx context.Context, req contract.ToolRequest) contract.ToolResult {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	res := contract.ToolResult{ID: req.ID, Tool: req.Tool}

	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	started := time.Now()
	callResult, err := s.client.CallTool(ctx, mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{
			Name:      req.Tool,
			Arguments: req.Args,
		},
	})
	elapsed := time.Since(started)

	if err != nil {
		s.logger.Warn().Err(err).Str("tool", req.Tool).Str("call_id", req.ID).
			Dur("elapsed", elapsed).Msg("tool invocation failed")
		res.Error = fmt.Sprintf("tool %s failed: %v", req.Tool, err)
		return res
	}

	text := flattenContent(callResult.Content)
	if callResult.IsError {
		if code, msg, ok := parseStructuredError(text); ok {
			res.Code = code
			res.Error = msg
			return res
		}
		if text == "" {
			text = fmt.Sprintf("tool %s reported an error", req.Tool)
		}
		res.Error = text
		return res
	}

	s.logger.Debug().Str("tool", req.Tool).Str("call_id", req.ID).
		Dur("elapsed", elapsed).Msg("tool invocation completed")
	res.Result = text
	return res
}

// Close tears down the session at process shutdown.
func (s *Session) Close() error {
	return s.client.Close()
}

// parseStructuredError recognises tool errors encoded as
// {"success":false,"error":{"code","message"}}. Plain-text errors stay
// uncoded.
func parseStructuredError(text string) (code, msg string, ok bool) {
	var payload struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil || payload.Error.Code == "" {
		return "", "", false
	}
	return payload.Error.Code, payload.Error.Message, true
}

func flattenContent(content []mcplib.Content) string {
	var parts []string
	for _, c := range content {
		switch tc := c.(type) {
		case mcplib.TextContent:
			parts = append(parts, tc.Text)
		case *mcplib.TextContent:
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
