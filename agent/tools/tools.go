// Package tools exposes the agent's operations as an MCP tool catalog.
//
// Every operation the orchestrator may perform (thread lookup, enrichment,
// pricing, negotiation, send, mark processed) is registered here under a
// stable name with a declared argument schema. Invocation happens only by
// name plus structured arguments through the execution session, never by
// direct call.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ManagementMO/dreamwell-assessment/agent/contract"
	"github.com/ManagementMO/dreamwell-assessment/agent/enrichment"
	"github.com/ManagementMO/dreamwell-assessment/agent/negotiation"
	"github.com/ManagementMO/dreamwell-assessment/agent/pricing"
	"github.com/ManagementMO/dreamwell-assessment/agent/store"
)

// Tool names as advertised in the catalog.
const (
	ToolGetLatestEmails      = "get_latest_emails"
	ToolGetEmailThread       = "get_email_thread"
	ToolSendReply            = "send_reply"
	ToolMarkAsProcessed      = "mark_as_processed"
	ToolGetBrandContext      = "get_brand_context"
	ToolFetchChannelData     = "fetch_channel_data"
	ToolCalculateOfferPrice  = "calculate_offer_price"
	ToolValidateCounterOffer = "validate_counter_offer"
)

// Server wraps the MCP server with the agent's service layer.
type Server struct {
	mcpServer *mcpserver.MCPServer
	threads   store.ThreadStore
	brands    store.BrandStore
	gateway   *enrichment.Gateway
	logger    zerolog.Logger
}

// New creates and configures the tool server with the full catalog.
func New(threads store.ThreadStore, brands store.BrandStore, gateway *enrichment.Gateway) *Server {
	s := &Server{
		threads: threads,
		brands:  brands,
		gateway: gateway,
		logger:  log.With().Str("component", "tools").Logger(),
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"influencer-agent",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
	)
	s.registerTools()
	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcplib.NewTool(ToolGetLatestEmails,
			mcplib.WithDescription("List recent email threads, newest activity first"),
			mcplib.WithNumber("limit", mcplib.Description("Maximum number of threads to return")),
		),
		s.handleGetLatestEmails,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool(ToolGetEmailThread,
			mcplib.WithDescription("Get the full email thread history by thread ID"),
			mcplib.WithString("thread_id", mcplib.Description("Thread identifier"), mcplib.Required()),
		),
		s.handleGetEmailThread,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool(ToolSendReply,
			mcplib.WithDescription("Send a reply on an email thread"),
			mcplib.WithString("thread_id", mcplib.Description("Thread to reply to"), mcplib.Required()),
			mcplib.WithString("content", mcplib.Description("Email body to send"), mcplib.Required()),
		),
		s.handleSendReply,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool(ToolMarkAsProcessed,
			mcplib.WithDescription("Mark an email thread as processed"),
			mcplib.WithString("thread_id", mcplib.Description("Thread to mark"), mcplib.Required()),
		),
		s.handleMarkAsProcessed,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool(ToolGetBrandContext,
			mcplib.WithDescription("Get brand profile, budget, and messaging guidelines"),
			mcplib.WithString("brand_id", mcplib.Description("Brand identifier"), mcplib.Required()),
		),
		s.handleGetBrandContext,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool(ToolFetchChannelData,
			mcplib.WithDescription("Fetch creator channel audience metrics, with fallback to local data when the live provider is unavailable"),
			mcplib.WithString("channel_url", mcplib.Description("Channel URL or @handle"), mcplib.Required()),
		),
		s.handleFetchChannelData,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool(ToolCalculateOfferPrice,
			mcplib.WithDescription("Calculate a fair CPM-based sponsorship price for a channel"),
			mcplib.WithString("channel_url", mcplib.Description("Channel URL or @handle"), mcplib.Required()),
		),
		s.handleCalculateOfferPrice,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool(ToolValidateCounterOffer,
			mcplib.WithDescription("Evaluate a creator's counter-offer against the computed fair price"),
			mcplib.WithString("channel_url", mcplib.Description("Channel URL or @handle"), mcplib.Required()),
			mcplib.WithNumber("counter_price", mcplib.Description("Counter-offer amount in USD"), mcplib.Required()),
		),
		s.handleValidateCounterOffer,
	)
}

func (s *Server) handleGetLatestEmails(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	limit := request.GetInt("limit", 10)

	summaries, err := s.threads.ListThreads(ctx, limit)
	if err != nil {
		return errorResult(fmt.Sprintf("list threads: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"threads": summaries,
		"total":   len(summaries),
	}), nil
}

func (s *Server) handleGetEmailThread(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	threadID := request.GetString("thread_id", "")
	if threadID == "" {
		return errorResult("thread_id is required"), nil
	}

	thread, err := s.threads.GetThread(ctx, threadID)
	if err != nil {
		return errorResult(fmt.Sprintf("get thread: %v", err)), nil
	}
	return jsonResult(thread), nil
}

func (s *Server) handleSendReply(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	threadID := request.GetString("thread_id", "")
	content := request.GetString("content", "")
	if threadID == "" || content == "" {
		return errorResult("thread_id and content are required"), nil
	}

	thread, err := s.threads.GetThread(ctx, threadID)
	if err != nil {
		return errorResult(fmt.Sprintf("send reply: %v", err)), nil
	}

	msg := store.Message{
		From:    fmt.Sprintf("outreach@%s.example", thread.Brand),
		To:      thread.InfluencerMail,
		Subject: replySubject(thread),
		Body:    content,
	}
	if err := s.threads.AppendReply(ctx, threadID, msg); err != nil {
		return errorResult(fmt.Sprintf("send reply: %v", err)), nil
	}

	sent, err := s.threads.GetThread(ctx, threadID)
	if err != nil {
		return errorResult(fmt.Sprintf("send reply: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"thread_id": threadID,
		"sent_at":   sent.LatestTimestamp(),
	}), nil
}

func (s *Server) handleMarkAsProcessed(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	threadID := request.GetString("thread_id", "")
	if threadID == "" {
		return errorResult("thread_id is required"), nil
	}

	if err := s.threads.MarkProcessed(ctx, threadID); err != nil {
		return errorResult(fmt.Sprintf("mark processed: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"thread_id": threadID,
		"status":    "processed",
	}), nil
}

func (s *Server) handleGetBrandContext(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	brandID := request.GetString("brand_id", "")
	if brandID == "" {
		return errorResult("brand_id is required"), nil
	}

	brand, err := s.brands.GetBrand(ctx, brandID)
	if err != nil {
		return errorResult(fmt.Sprintf("get brand: %v", err)), nil
	}
	return jsonResult(brand), nil
}

func (s *Server) handleFetchChannelData(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	channelURL := request.GetString("channel_url", "")
	if channelURL == "" {
		return errorResult("channel_url is required"), nil
	}

	metrics := s.gateway.Fetch(ctx, channelURL)
	if metrics.Unresolved {
		return errorResult(fmt.Sprintf("channel %q not found via provider or local dataset", channelURL)), nil
	}
	return jsonResult(metrics), nil
}

func (s *Server) handleCalculateOfferPrice(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	channelURL := request.GetString("channel_url", "")
	if channelURL == "" {
		return errorResult("channel_url is required"), nil
	}

	metrics := s.gateway.Fetch(ctx, channelURL)
	if metrics.Unresolved {
		return errorResult(fmt.Sprintf("cannot price %q: channel unresolved", channelURL)), nil
	}

	breakdown := pricing.Price(metrics)
	s.logger.Info().Str("channel", channelURL).
		Float64("total_price", breakdown.TotalPrice).
		Float64("final_cpm", breakdown.FinalCPM).
		Msg("calculated offer price")

	return jsonResult(map[string]any{
		"metrics":         metrics,
		"pricing":         breakdown,
		"negotiation_cap": breakdown.TotalPrice * 1.2,
	}), nil
}

func (s *Server) handleValidateCounterOffer(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	channelURL := request.GetString("channel_url", "")
	counter := request.GetFloat("counter_price", 0)
	if channelURL == "" {
		return errorResult("channel_url is required"), nil
	}

	metrics := s.gateway.Fetch(ctx, channelURL)
	if metrics.Unresolved {
		return errorResult(fmt.Sprintf("cannot evaluate counter for %q: channel unresolved", channelURL)), nil
	}

	fair := pricing.Price(metrics).TotalPrice
	decision, err := negotiation.Evaluate(fair, counter)
	if errors.Is(err, contract.ErrPrecondition) {
		// A non-positive fair price is an internal contract breach, not a
		// tool failure the model should reason around.
		return contractBreachResult(fmt.Sprintf("evaluate counter offer: %v", err)), nil
	}
	if err != nil {
		return errorResult(fmt.Sprintf("evaluate counter offer: %v", err)), nil
	}

	s.logger.Info().Str("channel", channelURL).
		Str("recommendation", string(decision.Outcome)).
		Float64("fair_price", fair).
		Float64("counter", counter).
		Msg("validated counter offer")

	return jsonResult(decision), nil
}

func replySubject(t *store.Thread) string {
	if len(t.Messages) == 0 {
		return "Partnership"
	}
	return "Re: " + t.Messages[0].Subject
}

func jsonResult(v any) *mcplib.CallToolResult {
	data, err := json.Marshal(map[string]any{
		"success": true,
		"data":    v,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("marshal result: %v", err))
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

// contractBreachResult encodes a precondition violation as a structured
// error so the session can classify it and the orchestrator can fail the
// run instead of folding it back as an observation.
func contractBreachResult(msg string) *mcplib.CallToolResult {
	data, err := json.Marshal(map[string]any{
		"success": false,
		"error": map[string]any{
			"code":    contract.CodePrecondition,
			"message": msg,
		},
	})
	if err != nil {
		return errorResult(msg)
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
		IsError: true,
	}
}
