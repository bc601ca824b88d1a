package enums

import "fmt"

// QuantityRule is a producer's purchase-quantity constraint.
type QuantityRule string

const (
	// QuantityRuleMultiple requires the producer total to be a multiple of the step.
	QuantityRuleMultiple QuantityRule = "multiple"
	// QuantityRuleMinimum requires at least step bottles.
	QuantityRuleMinimum QuantityRule = "minimum"
	QuantityRuleNone    QuantityRule = "none"
)

// DefaultQuantityStep applies when a producer has no step configured.
const DefaultQuantityStep = 6

var validQuantityRules = []QuantityRule{
	QuantityRuleMultiple,
	QuantityRuleMinimum,
	QuantityRuleNone,
}

// String implements fmt.Stringer.
func (q QuantityRule) String() string {
	return string(q)
}

// IsValid reports whether the value is a known QuantityRule.
func (q QuantityRule) IsValid() bool {
	for _, candidate := range validQuantityRules {
		if candidate == q {
			return true
		}
	}
	return false
}

// ParseQuantityRule converts raw input into a QuantityRule.
func ParseQuantityRule(value string) (QuantityRule, error) {
	for _, candidate := range validQuantityRules {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid quantity rule %q", value)
}
