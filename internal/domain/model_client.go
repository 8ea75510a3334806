package domain

import "context"

// Part is one piece of a user message sent to the model: plain text, or an
// inline binary attachment (image) identified by MIME type.
type Part struct {
	Text     string
	MIMEType string
	Data     []byte
}

// TextPart wraps a string as a text part.
func TextPart(s string) Part { return Part{Text: s} }

// FunctionCall is the single function invocation a model turn may request.
type FunctionCall struct {
	Name string
	Args map[string]any
}

// ModelReply is what one model round trip produces: plain text, or exactly
// one function-call request. The source model is constrained to single
// function-call semantics per turn.
type ModelReply struct {
	Text string
	Call *FunctionCall
}

// Chat is a stateful exchange with the model scoped to one turn. Send
// delivers the new user message; SendToolResult delivers a function
// response and returns the model's natural-language follow-up.
type Chat interface {
	Send(ctx context.Context, parts []Part) (*ModelReply, error)
	SendToolResult(ctx context.Context, name string, response map[string]any) (*ModelReply, error)
}

// ModelClient is the inference collaborator. NewChat binds a system
// instruction, a tool catalog, and prior history; Title produces a short
// conversation title from the opening messages.
type ModelClient interface {
	NewChat(system string, tools []ToolDeclaration, history []Message) Chat
	Title(ctx context.Context, messages []Message) (string, error)
}
