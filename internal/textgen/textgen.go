// Package textgen produces reply text through a language model. Callers branch
// on Result.Reason instead of handling errors: any Reason other than ReasonOK
// means "use deterministic fallback text".
package textgen

import "context"

type Reason string

const (
	ReasonOK       Reason = "ok"
	ReasonDisabled Reason = "disabled"
	ReasonEmpty    Reason = "empty"
	ReasonTimeout  Reason = "timeout"
	ReasonError    Reason = "error"
)

type Result struct {
	Text   string
	Reason Reason
}

func (r Result) OK() bool { return r.Reason == ReasonOK && r.Text != "" }

// Generator turns a system prompt and a customer message into reply text.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, message string) Result
}

// Disabled is the Generator used when no model is configured.
type Disabled struct{}

func (Disabled) Generate(context.Context, string, string) Result {
	return Result{Reason: ReasonDisabled}
}
