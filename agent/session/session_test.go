package session_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManagementMO/dreamwell-assessment/agent/contract"
	"github.com/ManagementMO/dreamwell-assessment/agent/enrichment"
	"github.com/ManagementMO/dreamwell-assessment/agent/session"
	"github.com/ManagementMO/dreamwell-assessment/agent/store"
	"github.com/ManagementMO/dreamwell-assessment/agent/tools"
)

func openSession(t *testing.T) *session.Session {
	t.Helper()

	fixtures, err := store.NewFixtureStore()
	require.NoError(t, err)
	dataset, err := enrichment.LoadFallbackDataset()
	require.NoError(t, err)

	srv := tools.New(fixtures, fixtures, enrichment.NewGateway(dataset))
	sess, err := session.Open(context.Background(), srv.MCPServer())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func TestOpenRetrievesCatalog(t *testing.T) {
	sess := openSession(t)

	catalog := sess.Catalog()
	require.Len(t, catalog, 8)

	names := make(map[string]bool, len(catalog))
	for _, tool := range catalog {
		names[tool.Name] = true
	}
	for _, want := range []string{
		tools.ToolGetLatestEmails,
		tools.ToolGetEmailThread,
		tools.ToolSendReply,
		tools.ToolMarkAsProcessed,
		tools.ToolGetBrandContext,
		tools.ToolFetchChannelData,
		tools.ToolCalculateOfferPrice,
		tools.ToolValidateCounterOffer,
	} {
		assert.True(t, names[want], "catalog missing %s", want)
	}
}

func TestCallReturnsStructuredResult(t *testing.T) {
	sess := openSession(t)

	res := sess.Call(context.Background(), contract.ToolRequest{
		Tool: tools.ToolGetEmailThread,
		Args: map[string]any{"thread_id": "thread_001"},
	})
	require.False(t, res.Failed(), "unexpected tool error: %s", res.Error)
	require.NotEmpty(t, res.ID, "call must be assigned a correlation id")

	var payload struct {
		Success bool         `json:"success"`
		Data    store.Thread `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Result), &payload))
	assert.True(t, payload.Success)
	assert.Equal(t, "thread_001", payload.Data.ThreadID)
	assert.Equal(t, "Dana Okafor", payload.Data.InfluencerName)
}

func TestCallPricingThroughSession(t *testing.T) {
	sess := openSession(t)

	res := sess.Call(context.Background(), contract.ToolRequest{
		Tool: tools.ToolCalculateOfferPrice,
		Args: map[string]any{"channel_url": "https://www.youtube.com/@BuildItWithPriya"},
	})
	require.False(t, res.Failed(), "unexpected tool error: %s", res.Error)

	var payload struct {
		Success bool `json:"success"`
		Data    struct {
			Pricing struct {
				FinalCPM   float64 `json:"final_cpm"`
				TotalPrice float64 `json:"total_price"`
			} `json:"pricing"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Result), &payload))
	assert.Equal(t, 47.19, payload.Data.Pricing.FinalCPM)
	assert.Equal(t, 1179.75, payload.Data.Pricing.TotalPrice)
}

func TestCallToolErrorFoldsIntoResult(t *testing.T) {
	sess := openSession(t)

	res := sess.Call(context.Background(), contract.ToolRequest{
		Tool: tools.ToolGetEmailThread,
		Args: map[string]any{"thread_id": "thread_999"},
	})
	require.True(t, res.Failed())
	assert.Contains(t, res.Error, "thread_999")
	assert.Empty(t, res.Code, "plain tool errors carry no classification code")
}

func TestCallClassifiesContractBreach(t *testing.T) {
	srv := mcpserver.NewMCPServer("breach-test", "0.0.1", mcpserver.WithToolCapabilities(true))
	srv.AddTool(
		mcplib.NewTool("always_breaches"),
		func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
			return &mcplib.CallToolResult{
				Content: []mcplib.Content{
					mcplib.TextContent{
						Type: "text",
						Text: `{"success":false,"error":{"code":"precondition","message":"fair price must be positive"}}`,
					},
				},
				IsError: true,
			}, nil
		},
	)

	sess, err := session.Open(context.Background(), srv)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })

	res := sess.Call(context.Background(), contract.ToolRequest{Tool: "always_breaches"})
	require.True(t, res.Failed())
	assert.Equal(t, contract.CodePrecondition, res.Code)
	assert.Equal(t, "fair price must be positive", res.Error)
}

func TestCallUnknownToolDoesNotPanic(t *testing.T) {
	sess := openSession(t)

	res := sess.Call(context.Background(), contract.ToolRequest{
		Tool: "no_such_tool",
		Args: map[string]any{},
	})
	require.True(t, res.Failed())
}

func TestConcurrentCallsKeepResultsCorrelated(t *testing.T) {
	sess := openSession(t)

	// Many runs share the one session; every result must carry the id and
	// payload of the request that produced it, never a neighbour's.
	threadIDs := []string{"thread_001", "thread_002", "thread_003", "thread_004", "thread_005"}
	const callers = 40

	results := make([]contract.ToolResult, callers)
	wants := make([]string, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wantThread := threadIDs[i%len(threadIDs)]
		wants[i] = wantThread
		wg.Add(1)
		go func(i int, threadID string) {
			defer wg.Done()
			results[i] = sess.Call(context.Background(), contract.ToolRequest{
				ID:   fmt.Sprintf("call-%d", i),
				Tool: tools.ToolGetEmailThread,
				Args: map[string]any{"thread_id": threadID},
			})
		}(i, wantThread)
	}
	wg.Wait()

	for i, res := range results {
		require.False(t, res.Failed(), "call %d: unexpected tool error: %s", i, res.Error)
		assert.Equal(t, fmt.Sprintf("call-%d", i), res.ID)

		var payload struct {
			Data store.Thread `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(res.Result), &payload))
		assert.Equal(t, wants[i], payload.Data.ThreadID, "call %d got another call's thread", i)
	}
}

func TestCallMarksCounterOfferDecision(t *testing.T) {
	sess := openSession(t)

	// Fair price for @BuildItWithPriya is 1179.75; 1250 is within 10%.
	res := sess.Call(context.Background(), contract.ToolRequest{
		Tool: tools.ToolValidateCounterOffer,
		Args: map[string]any{
			"channel_url":   "@BuildItWithPriya",
			"counter_price": 1250.0,
		},
	})
	require.False(t, res.Failed(), "unexpected tool error: %s", res.Error)

	var payload struct {
		Data struct {
			Recommendation string `json:"recommendation"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Result), &payload))
	assert.Equal(t, "auto_accept", payload.Data.Recommendation)
}
