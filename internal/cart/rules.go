package cart

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/palletwine/palletwine-backend/pkg/db/models"
	"github.com/palletwine/palletwine-backend/pkg/enums"
)

// Line is one cart row as the validator sees it.
type Line struct {
	ID         uuid.UUID `json:"id"`
	WineID     uuid.UUID `json:"wineId"`
	ProducerID uuid.UUID `json:"producerId"`
	Quantity   int       `json:"quantity"`
	PriceBand  string    `json:"priceBand,omitempty"`
}

// key identifies the line in the cache fingerprint. Stateless lines have
// no persisted id.
func (l Line) key() string {
	if l.ID != uuid.Nil {
		return l.ID.String()
	}
	return l.WineID.String() + "/" + l.ProducerID.String() + "/" + l.PriceBand
}

// LinesFromCartItems maps persisted cart rows to validator lines.
func LinesFromCartItems(items []models.CartItem) []Line {
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, Line{
			ID:         item.ID,
			WineID:     item.WineID,
			ProducerID: item.ProducerID,
			Quantity:   item.Quantity,
			PriceBand:  item.PriceBand,
		})
	}
	return lines
}

// ProducerRule is the quantity constraint for one producer.
type ProducerRule struct {
	ProducerID uuid.UUID
	Name       string
	Rule       enums.QuantityRule
	Step       int
}

// RuleFromProducer normalizes a stored producer, defaulting unknown rules to
// multiples and unset steps to DefaultQuantityStep.
func RuleFromProducer(p models.Producer) ProducerRule {
	return normalizeRule(ProducerRule{
		ProducerID: p.ID,
		Name:       p.Name,
		Rule:       p.QuantityRule,
		Step:       p.QuantityStep,
	})
}

// DefaultRule applies to producers missing from the catalog.
func DefaultRule(producerID uuid.UUID) ProducerRule {
	return normalizeRule(ProducerRule{ProducerID: producerID})
}

func normalizeRule(r ProducerRule) ProducerRule {
	if !r.Rule.IsValid() {
		r.Rule = enums.QuantityRuleMultiple
	}
	if r.Step <= 0 {
		r.Step = enums.DefaultQuantityStep
	}
	if r.Name == "" {
		r.Name = r.ProducerID.String()
	}
	return r
}

// Report is the cart validation result returned to clients.
type Report struct {
	IsValid             bool                 `json:"isValid"`
	ProducerValidations []ProducerValidation `json:"producerValidations"`
	Errors              []string             `json:"errors"`
}

// ProducerValidation is the outcome for one producer group.
type ProducerValidation struct {
	ProducerID       uuid.UUID          `json:"producerId"`
	ProducerName     string             `json:"producerName"`
	CurrentQuantity  int                `json:"currentQuantity"`
	RequiredQuantity int                `json:"requiredQuantity"`
	Rule             enums.QuantityRule `json:"rule"`
	Step             int                `json:"step"`
	Shortfall        int                `json:"shortfall"`
	IsValid          bool               `json:"isValid"`
}

// PassReport is the fail-open result: valid with nothing to report.
func PassReport() Report {
	return Report{IsValid: true, ProducerValidations: []ProducerValidation{}, Errors: []string{}}
}

// Shortfall returns how many bottles are missing for qty to satisfy rule.
// An empty group (qty 0) never falls short.
func Shortfall(rule enums.QuantityRule, step, qty int) int {
	if step <= 0 {
		step = enums.DefaultQuantityStep
	}
	if qty <= 0 {
		return 0
	}
	switch rule {
	case enums.QuantityRuleNone:
		return 0
	case enums.QuantityRuleMinimum:
		if qty >= step {
			return 0
		}
		return step - qty
	default:
		if rem := qty % step; rem != 0 {
			return step - rem
		}
		return 0
	}
}

// EvaluateProducer checks one producer's summed quantity.
func EvaluateProducer(rule ProducerRule, qty int) ProducerValidation {
	rule = normalizeRule(rule)
	shortfall := Shortfall(rule.Rule, rule.Step, qty)
	return ProducerValidation{
		ProducerID:       rule.ProducerID,
		ProducerName:     rule.Name,
		CurrentQuantity:  qty,
		RequiredQuantity: qty + shortfall,
		Rule:             rule.Rule,
		Step:             rule.Step,
		Shortfall:        shortfall,
		IsValid:          shortfall == 0,
	}
}

// BuildReport groups lines by producer and evaluates each group. Producers
// absent from rules get DefaultRule.
func BuildReport(lines []Line, rules map[uuid.UUID]ProducerRule) Report {
	totals := map[uuid.UUID]int{}
	order := []uuid.UUID{}
	for _, line := range lines {
		if _, seen := totals[line.ProducerID]; !seen {
			order = append(order, line.ProducerID)
			totals[line.ProducerID] = 0
		}
		if line.Quantity > 0 {
			totals[line.ProducerID] += line.Quantity
		}
	}

	report := PassReport()
	for _, producerID := range order {
		rule, ok := rules[producerID]
		if !ok {
			rule = DefaultRule(producerID)
		}
		report.ProducerValidations = append(report.ProducerValidations, EvaluateProducer(rule, totals[producerID]))
	}

	sort.SliceStable(report.ProducerValidations, func(i, j int) bool {
		a, b := report.ProducerValidations[i], report.ProducerValidations[j]
		if a.ProducerName != b.ProducerName {
			return a.ProducerName < b.ProducerName
		}
		return a.ProducerID.String() < b.ProducerID.String()
	})

	for _, pv := range report.ProducerValidations {
		if pv.IsValid {
			continue
		}
		report.IsValid = false
		report.Errors = append(report.Errors, errorText(pv))
	}
	return report
}

func errorText(pv ProducerValidation) string {
	if pv.Rule == enums.QuantityRuleMinimum {
		return fmt.Sprintf("%s: add %d more bottle(s) to reach the minimum of %d", pv.ProducerName, pv.Shortfall, pv.Step)
	}
	return fmt.Sprintf("%s: add %d more bottle(s) to reach a multiple of %d", pv.ProducerName, pv.Shortfall, pv.Step)
}
