package policy

import (
	"context"
	"strings"
)

// Modes recognised by Evaluate.
const (
	ModeAsk  = "ask"  // defer to Ask, or to a human when Ask is nil
	ModeAuto = "auto" // approve automatically
	ModeDeny = "deny" // reject everything
)

// Outcome of a policy evaluation.
type Outcome string

const (
	OutcomeApprove Outcome = "approve"
	OutcomeReject  Outcome = "reject"
	OutcomeDefer   Outcome = "defer"
)

// AskFunc is invoked when Mode==ask. Returning true approves the request.
// Implementations MAY mutate the policy, for example switching to ModeAuto
// after the first approval.
type AskFunc func(ctx context.Context, category, summary string, p *Policy) bool

// Policy decides approval requests by category.
//
//   - Mode controls the high-level behaviour (ask / auto / deny).
//   - AllowList, BlockList filter categories regardless of Mode.
//   - Ask is only used when Mode==ask.
//
// A nil *Policy defers every request to a human.
type Policy struct {
	Mode      string
	AllowList []string
	BlockList []string
	Ask       AskFunc
}

// Config represents the declarative, serialisable part of a Policy.
type Config struct {
	Mode      string   `json:"mode,omitempty" yaml:"mode,omitempty"`
	AllowList []string `json:"allow,omitempty" yaml:"allow,omitempty"`
	BlockList []string `json:"block,omitempty" yaml:"block,omitempty"`
}

// ToConfig converts a runtime Policy into a persistable Config.
func ToConfig(p *Policy) *Config {
	if p == nil {
		return nil
	}
	return &Config{
		Mode:      p.Mode,
		AllowList: append([]string(nil), p.AllowList...),
		BlockList: append([]string(nil), p.BlockList...),
	}
}

// FromConfig converts a stored Config back to a runtime Policy (without AskFunc).
func FromConfig(c *Config) *Policy {
	if c == nil {
		return nil
	}
	return &Policy{
		Mode:      c.Mode,
		AllowList: append([]string(nil), c.AllowList...),
		BlockList: append([]string(nil), c.BlockList...),
	}
}

// IsAllowed evaluates AllowList / BlockList by case-insensitive category name.
// BlockList has priority; an empty AllowList allows everything.
func (p *Policy) IsAllowed(category string) bool {
	if p == nil {
		return true
	}
	for _, b := range p.BlockList {
		if strings.EqualFold(category, b) {
			return false
		}
	}
	if len(p.AllowList) == 0 {
		return true
	}
	for _, a := range p.AllowList {
		if strings.EqualFold(category, a) {
			return true
		}
	}
	return false
}

// Evaluate returns the outcome for a request of category and a reason for rejections.
func (p *Policy) Evaluate(ctx context.Context, category, summary string) (Outcome, string) {
	if p == nil {
		return OutcomeDefer, ""
	}
	if !p.IsAllowed(category) {
		return OutcomeReject, "category " + category + " blocked by policy"
	}
	switch strings.ToLower(p.Mode) {
	case ModeDeny:
		return OutcomeReject, "denied by policy"
	case ModeAuto, "":
		return OutcomeApprove, ""
	case ModeAsk:
		if p.Ask == nil {
			return OutcomeDefer, ""
		}
		if p.Ask(ctx, category, summary, p) {
			return OutcomeApprove, ""
		}
		return OutcomeReject, "rejected by reviewer"
	}
	return OutcomeDefer, ""
}

type ctxKeyT struct{}

var ctxKey ctxKeyT

// WithPolicy embeds policy in ctx.
func WithPolicy(ctx context.Context, p *Policy) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, p)
}

// FromContext extracts the policy embedded by WithPolicy.
func FromContext(ctx context.Context) *Policy {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxKey).(*Policy); ok {
		return v
	}
	return nil
}
