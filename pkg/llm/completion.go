package llm

import "context"

// Completion is one prompt addressed to a model on behalf of a role.
type Completion struct {
	// System is the persona and output contract of the role.
	System string
	// Context carries the output of a previous step, if any.
	Context string
	// Prompt is the rendered task description.
	Prompt string
}

// Completer completes a prompt and returns the generated text.
type Completer interface {
	Complete(ctx context.Context, c Completion) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, c Completion) (string, error)

// Complete calls f(ctx, c).
func (f CompleterFunc) Complete(ctx context.Context, c Completion) (string, error) {
	return f(ctx, c)
}

// contextHeading introduces prior-step output inside the system message.
const contextHeading = "Context from the previous step:"

// Messages expands a completion into chat messages. Prior-step context is
// appended to the system message so the user turn stays the task itself.
func (c Completion) Messages() []Message {
	system := c.System
	if c.Context != "" {
		if system != "" {
			system += "\n\n"
		}
		system += contextHeading + "\n" + c.Context
	}
	msgs := make([]Message, 0, 2)
	if system != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: system})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: c.Prompt})
	return msgs
}
