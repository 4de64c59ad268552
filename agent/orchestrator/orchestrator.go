// Package orchestrator drives the bounded reasoning/acting loop that turns
// an inbound email thread into a drafted reply.
//
// The loop is an explicit finite state machine: a reasoning step requests one
// model turn, an acting step executes the requested tool calls through the
// shared execution session in request order, and the run ends when a turn
// carries no tool calls, the iteration cap is hit, or the reasoning service
// fails. Tool failures never abort a run; they fold back into the transcript
// as error observations the model can react to.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	openaisdk "github.com/openai/openai-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ManagementMO/dreamwell-assessment/agent/contract"
	"github.com/ManagementMO/dreamwell-assessment/agent/enrichment"
	"github.com/ManagementMO/dreamwell-assessment/agent/negotiation"
	"github.com/ManagementMO/dreamwell-assessment/agent/pricing"
	"github.com/ManagementMO/dreamwell-assessment/agent/prompt"
	"github.com/ManagementMO/dreamwell-assessment/agent/store"
	"github.com/ManagementMO/dreamwell-assessment/agent/tools"
)

// State is one phase of the reasoning/acting machine.
type State string

const (
	StateReasoning State = "reasoning"
	StateActing    State = "acting"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

const (
	// DefaultMaxIterations caps reasoning/acting round-trips per run.
	DefaultMaxIterations = 5
	// DefaultRunTimeout bounds one end-to-end orchestration run.
	DefaultRunTimeout = 45 * time.Second

	// incompleteMarker is returned as the draft when the iteration cap was
	// hit before the model produced any usable text.
	incompleteMarker = "[could not complete: iteration limit reached before a draft was produced]"
)

// ToolSession is the execution channel contract. Satisfied by
// session.Session and by fakes in tests.
type ToolSession interface {
	Catalog() []mcplib.Tool
	Call(ctx context.Context, req contract.ToolRequest) contract.ToolResult
}

// ChatModel is the reasoning-service contract. Satisfied by llm.Client.
type ChatModel interface {
	CreateTurn(
		ctx context.Context,
		messages []openaisdk.ChatCompletionMessageParamUnion,
		tools []openaisdk.ChatCompletionToolParam,
	) (*openaisdk.ChatCompletion, error)
}

// Request identifies one inbound thread to draft a reply for.
type Request struct {
	Thread  *store.Thread
	BrandID string
}

// PricingOutcome is the structured pricing data captured from a
// calculate_offer_price tool result, kept for the caller's UI.
type PricingOutcome struct {
	Metrics        enrichment.ChannelMetrics `json:"metrics"`
	Pricing        pricing.Breakdown         `json:"pricing"`
	NegotiationCap float64                   `json:"negotiation_cap"`
}

// Result is the output of one orchestration run. Transcript is returned for
// observability only and is not retained by the orchestrator.
type Result struct {
	Status        State                 `json:"status"`
	Category      string                `json:"category"`
	Draft         string                `json:"response_draft"`
	Pricing       *PricingOutcome       `json:"pricing_breakdown,omitempty"`
	Negotiation   *negotiation.Decision `json:"negotiation_decision,omitempty"`
	Iterations    int                   `json:"iterations_used"`
	Transcript    contract.Transcript   `json:"transcript"`
	FailureReason string                `json:"failure_reason,omitempty"`
}

// Orchestrator runs the loop. One instance serves all requests; per-run
// state lives on the stack of Run.
type Orchestrator struct {
	session       ToolSession
	model         ChatModel
	maxIterations int
	runTimeout    time.Duration
	logger        zerolog.Logger
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithMaxIterations overrides the round-trip cap.
func WithMaxIterations(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxIterations = n
		}
	}
}

// WithRunTimeout overrides the end-to-end run deadline.
func WithRunTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.runTimeout = d
		}
	}
}

// New wires an Orchestrator onto the shared execution session and reasoning
// service. The session is injected, never reached through globals, so tests
// can substitute a fake.
func New(sess ToolSession, model ChatModel, opts ...Option) (*Orchestrator, error) {
	if sess == nil {
		return nil, errors.New("execution session is required")
	}
	if model == nil {
		return nil, errors.New("chat model is required")
	}

	o := &Orchestrator{
		session:       sess,
		model:         model,
		maxIterations: DefaultMaxIterations,
		runTimeout:    DefaultRunTimeout,
		logger:        log.With().Str("component", "orchestrator").Logger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// run is the per-request machine state. Owned exclusively by one Run call.
type run struct {
	state      State
	iterations int
	messages   []openaisdk.ChatCompletionMessageParamUnion
	transcript contract.Transcript
	pending    []contract.ToolRequest
	lastText   string
	result     Result
}

// Run executes the loop for one request.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	if req.Thread == nil {
		return Result{}, fmt.Errorf("%w: thread is required", contract.ErrInvalidArgument)
	}
	if req.BrandID == "" {
		req.BrandID = "the brand"
	}

	ctx, cancel := context.WithTimeout(ctx, o.runTimeout)
	defer cancel()

	threadJSON, err := json.Marshal(req.Thread)
	if err != nil {
		return Result{}, fmt.Errorf("%w: serialize thread: %v", contract.ErrInvalidArgument, err)
	}

	system := prompt.Manager(req.BrandID)
	user := fmt.Sprintf("Brand: %s\nEmail thread:\n%s", req.BrandID, threadJSON)

	r := &run{
		state: StateReasoning,
		messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(system),
			openaisdk.UserMessage(user),
		},
		transcript: contract.Transcript{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}

	toolParams := catalogToOpenAI(o.session.Catalog())

	for r.state == StateReasoning || r.state == StateActing {
		switch r.state {
		case StateReasoning:
			o.stepReasoning(ctx, r, toolParams)
		case StateActing:
			o.stepActing(ctx, r)
		}
	}

	r.result.Status = r.state
	r.result.Iterations = r.iterations
	r.result.Transcript = r.transcript
	if r.result.Draft == "" {
		if r.lastText != "" {
			r.result.Draft = r.lastText
		} else {
			r.result.Draft = incompleteMarker
		}
	}
	r.result.Category = categorize(r.result.Draft)

	o.logger.Info().
		Str("thread", req.Thread.ThreadID).
		Str("status", string(r.result.Status)).
		Int("iterations", r.result.Iterations).
		Msg("orchestration run finished")
	return r.result, nil
}

// stepReasoning requests one model turn. Zero tool calls in the turn ends
// the run; any tool calls move it to acting. The iteration cap forces done
// with the best available partial content.
func (o *Orchestrator) stepReasoning(ctx context.Context, r *run, toolParams []openaisdk.ChatCompletionToolParam) {
	if r.iterations >= o.maxIterations {
		o.logger.Warn().Int("cap", o.maxIterations).Msg("iteration cap reached, forcing completion")
		r.state = StateDone
		return
	}
	r.iterations++

	completion, err := o.model.CreateTurn(ctx, r.messages, toolParams)
	if err != nil {
		r.state = StateFailed
		r.result.FailureReason = err.Error()
		o.logger.Error().Err(err).Msg("reasoning turn failed")
		return
	}

	msg := completion.Choices[0].Message
	r.messages = append(r.messages, msg.ToParam())
	r.transcript = r.transcript.Append(assistantTurn(msg))

	if msg.Content != "" {
		r.lastText = msg.Content
	}
	if len(msg.ToolCalls) == 0 {
		r.result.Draft = strings.TrimSpace(msg.Content)
		r.state = StateDone
		return
	}

	r.pending = toToolRequests(msg.ToolCalls)
	r.state = StateActing
}

// stepActing executes the pending tool calls in request order, folding each
// result (or error observation) back into the transcript before the next
// reasoning step. A precondition breach is the one failure that does not
// fold: it marks an internal contract violation and fails the run.
func (o *Orchestrator) stepActing(ctx context.Context, r *run) {
	for _, call := range r.pending {
		res := o.session.Call(ctx, call)

		content := res.Result
		if res.Failed() {
			content = "Error: " + res.Error
		} else {
			o.capture(call.Tool, res.Result, &r.result)
		}

		r.messages = append(r.messages, openaisdk.ToolMessage(content, call.ID))
		r.transcript = r.transcript.Append(contract.Turn{
			Role:       "tool",
			Content:    content,
			ToolCallID: call.ID,
		})

		if res.Code == contract.CodePrecondition {
			o.logger.Error().Str("tool", call.Tool).Str("error", res.Error).
				Msg("tool reported a contract breach")
			r.pending = nil
			r.state = StateFailed
			r.result.FailureReason = res.Error
			return
		}
	}
	r.pending = nil
	r.state = StateReasoning
}

// capture lifts structured pricing and negotiation data out of tool results
// so the caller gets them without re-parsing the transcript.
func (o *Orchestrator) capture(tool, result string, out *Result) {
	switch tool {
	case tools.ToolCalculateOfferPrice:
		var payload struct {
			Success bool           `json:"success"`
			Data    PricingOutcome `json:"data"`
		}
		if err := json.Unmarshal([]byte(result), &payload); err == nil && payload.Success {
			out.Pricing = &payload.Data
		}
	case tools.ToolValidateCounterOffer:
		var payload struct {
			Success bool                 `json:"success"`
			Data    negotiation.Decision `json:"data"`
		}
		if err := json.Unmarshal([]byte(result), &payload); err == nil && payload.Success {
			out.Negotiation = &payload.Data
		}
	}
}

// toToolRequests converts model tool calls into session requests, preserving
// request order. Unparsable argument payloads become empty argument maps;
// the tool surfaces the validation error and the model sees it as an
// observation.
func toToolRequests(calls []openaisdk.ChatCompletionMessageToolCall) []contract.ToolRequest {
	reqs := make([]contract.ToolRequest, 0, len(calls))
	for _, call := range calls {
		args := map[string]any{}
		if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
			_ = json.Unmarshal([]byte(raw), &args)
		}
		reqs = append(reqs, contract.ToolRequest{
			ID:   call.ID,
			Tool: call.Function.Name,
			Args: args,
		})
	}
	return reqs
}

func assistantTurn(msg openaisdk.ChatCompletionMessage) contract.Turn {
	turn := contract.Turn{Role: "assistant", Content: msg.Content}
	for _, call := range msg.ToolCalls {
		args := map[string]any{}
		_ = json.Unmarshal([]byte(call.Function.Arguments), &args)
		turn.ToolCalls = append(turn.ToolCalls, contract.ToolRequest{
			ID:   call.ID,
			Tool: call.Function.Name,
			Args: args,
		})
	}
	return turn
}

// catalogToOpenAI converts the MCP tool catalog into OpenAI function
// declarations. MCP input schemas are already JSON Schema, so they pass
// through a marshal round-trip unchanged.
func catalogToOpenAI(catalog []mcplib.Tool) []openaisdk.ChatCompletionToolParam {
	params := make([]openaisdk.ChatCompletionToolParam, 0, len(catalog))
	for _, t := range catalog {
		fn := openaisdk.FunctionDefinitionParam{Name: t.Name}
		if t.Description != "" {
			fn.Description = openaisdk.String(t.Description)
		}
		if raw, err := json.Marshal(t.InputSchema); err == nil {
			var schema openaisdk.FunctionParameters
			if err := json.Unmarshal(raw, &schema); err == nil {
				fn.Parameters = schema
			}
		}
		params = append(params, openaisdk.ChatCompletionToolParam{Function: fn})
	}
	return params
}

// categorize labels the draft for the listing UI.
func categorize(draft string) string {
	lower := strings.ToLower(draft)
	switch {
	case strings.Contains(lower, "negotiat"):
		return "negotiation"
	case strings.Contains(lower, "accept"):
		return "acceptance"
	case strings.Contains(lower, "decline"):
		return "rejection"
	default:
		return "response"
	}
}
