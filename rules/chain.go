package rules

import "fmt"

// Chain holds an ordered list of rules and applies them one after another.
type Chain struct {
	rules []*Rule
}

// NewChain creates a chain with the given rules. Nil rules are skipped.
func NewChain(rules ...*Rule) *Chain {
	c := &Chain{rules: make([]*Rule, 0, len(rules))}
	for _, rule := range rules {
		c.Add(rule)
	}
	return c
}

// Add appends a rule to the chain.
func (c *Chain) Add(rule *Rule) {
	if rule == nil {
		return
	}
	c.rules = append(c.rules, rule)
}

// Len returns the number of rules in the chain.
func (c *Chain) Len() int {
	return len(c.rules)
}

// Apply runs every rule with its guards, feeding each output into the next rule.
// On error it returns the text produced by the rules that succeeded.
func (c *Chain) Apply(text string) (string, error) {
	for i, rule := range c.rules {
		out, err := rule.ApplyWithGuards(text)
		if err != nil {
			return text, fmt.Errorf("rule %d (%s): %w", i, rule.Name(), err)
		}
		text = out
	}
	return text, nil
}
