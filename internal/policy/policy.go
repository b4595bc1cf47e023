// Package policy classifies the hypermedia links returned by the remote API.
// Rules are govaluate expressions over the link's rel, href and method; the
// first rule (by priority) that matches any link, in link order, decides what
// the card client does next.
package policy

import (
	"fmt"
	"sort"

	"github.com/Knetic/govaluate"

	"github.com/yourorg/card-payments/internal/gateway"
)

// Action is what a matched link asks the caller to do.
type Action int

const (
	ActionNone        Action = iota
	ActionChallenge          // run the redirect challenge at the link's href
	ActionContingency        // 3DS contingency on a vault setup token
)

func (a Action) String() string {
	switch a {
	case ActionChallenge:
		return "challenge"
	case ActionContingency:
		return "contingency"
	default:
		return "none"
	}
}

// LinkRule is one configurable classification rule.
type LinkRule struct {
	ID         string
	Expression string // e.g. "rel == 'payer-action'"
	Priority   int    // lower runs first; ties keep declaration order
	Action     Action
}

// Match is the outcome of Classify. Found is false when no rule matched.
type Match struct {
	Found  bool
	RuleID string
	Action Action
	Link   gateway.Link
}

type compiledRule struct {
	LinkRule
	expr *govaluate.EvaluableExpression
}

// LinkPolicy evaluates LinkRules against a result's links.
type LinkPolicy struct {
	rules []compiledRule
}

// ApprovalRules detects the payer-action link of a confirm-payment-source response.
func ApprovalRules() []LinkRule {
	return []LinkRule{
		{ID: "payer_action", Expression: "rel == 'payer-action'", Priority: 1, Action: ActionChallenge},
	}
}

// VaultRules detects the helios approve link of an updated vault setup token.
func VaultRules() []LinkRule {
	return []LinkRule{
		{ID: "helios_contingency", Expression: "rel == 'approve' && href =~ 'helios'", Priority: 1, Action: ActionContingency},
	}
}

// NewLinkPolicy compiles rules. An empty rule set never matches.
func NewLinkPolicy(rules []LinkRule) (*LinkPolicy, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if r.Expression == "" {
			return nil, fmt.Errorf("policy rule ID '%s' has an empty expression", r.ID)
		}
		expr, err := govaluate.NewEvaluableExpression(r.Expression)
		if err != nil {
			return nil, fmt.Errorf("failed to compile rule ID '%s': %w", r.ID, err)
		}
		compiled = append(compiled, compiledRule{LinkRule: r, expr: expr})
	}
	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].Priority < compiled[j].Priority
	})
	return &LinkPolicy{rules: compiled}, nil
}

// MustLinkPolicy is NewLinkPolicy for the built-in rule sets.
func MustLinkPolicy(rules []LinkRule) *LinkPolicy {
	p, err := NewLinkPolicy(rules)
	if err != nil {
		panic(err)
	}
	return p
}

// Classify returns the first link matched by the highest priority rule.
func (p *LinkPolicy) Classify(links []gateway.Link) (Match, error) {
	for _, rule := range p.rules {
		for _, link := range links {
			params := map[string]interface{}{
				"rel":    link.Rel,
				"href":   link.Href,
				"method": link.Method,
			}
			result, err := rule.expr.Evaluate(params)
			if err != nil {
				return Match{}, fmt.Errorf("failed to evaluate rule ID '%s': %w", rule.ID, err)
			}
			matched, ok := result.(bool)
			if !ok {
				return Match{}, fmt.Errorf("rule ID '%s' did not evaluate to a boolean (got %T)", rule.ID, result)
			}
			if matched {
				return Match{Found: true, RuleID: rule.ID, Action: rule.Action, Link: link}, nil
			}
		}
	}
	return Match{}, nil
}
