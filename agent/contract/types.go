package contract

// ToolRequest is a structured, named request to execute one registered
// operation. ID correlates the request with its result inside a transcript
// and across concurrent runs sharing the execution session.
type ToolRequest struct {
	ID   string         `json:"id,omitempty"`
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolResult is the structured return of one tool invocation. Exactly one of
// Result and Error is meaningful; a non-empty Error means the call failed and
// the message is safe to fold back into a model transcript.
type ToolResult struct {
	ID     string `json:"id,omitempty"`
	Tool   string `json:"tool"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	// Code classifies structured errors (e.g. CodePrecondition). Empty for
	// successes and for plain-text tool errors.
	Code string `json:"code,omitempty"`
}

// Failed reports whether the invocation produced an error observation.
func (r ToolResult) Failed() bool {
	return r.Error != ""
}

// Turn is one entry in an orchestration transcript.
type Turn struct {
	Role       string        `json:"role"` // system | user | assistant | tool
	Content    string        `json:"content,omitempty"`
	ToolCalls  []ToolRequest `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

// Transcript is the ordered record of one orchestration run. It grows
// monotonically during the run, is owned exclusively by that run, and is
// returned to the caller for observability only.
type Transcript []Turn

// Append adds a turn and returns the grown transcript.
func (t Transcript) Append(turn Turn) Transcript {
	return append(t, turn)
}
