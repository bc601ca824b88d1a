package cart

import (
	"testing"

	"github.com/google/uuid"

	"github.com/palletwine/palletwine-backend/pkg/enums"
)

func TestShortfallMultipleOfSix(t *testing.T) {
	cases := []struct {
		qty  int
		want int
	}{
		{0, 0}, {6, 0}, {12, 0},
		{1, 5}, {5, 1}, {7, 5}, {11, 1},
	}
	for _, tc := range cases {
		if got := Shortfall(enums.QuantityRuleMultiple, 6, tc.qty); got != tc.want {
			t.Fatalf("qty %d: expected shortfall %d, got %d", tc.qty, tc.want, got)
		}
	}
}

func TestShortfallMinimumAndNone(t *testing.T) {
	if got := Shortfall(enums.QuantityRuleMinimum, 6, 4); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := Shortfall(enums.QuantityRuleMinimum, 6, 7); got != 0 {
		t.Fatalf("minimum is satisfied above step, got %d", got)
	}
	if got := Shortfall(enums.QuantityRuleNone, 6, 1); got != 0 {
		t.Fatalf("none never falls short, got %d", got)
	}
	if got := Shortfall(enums.QuantityRuleMultiple, 0, 5); got != 1 {
		t.Fatalf("unset step defaults to 6, got %d", got)
	}
}

func TestEvaluateProducerRequiredQuantity(t *testing.T) {
	pv := EvaluateProducer(ProducerRule{ProducerID: uuid.New(), Name: "Domaine A", Rule: enums.QuantityRuleMultiple, Step: 6}, 7)
	if pv.IsValid || pv.Shortfall != 5 || pv.RequiredQuantity != 12 {
		t.Fatalf("unexpected validation %+v", pv)
	}
}

func TestBuildReportGroupsAndSortsByProducerName(t *testing.T) {
	zed := uuid.New()
	alpha := uuid.New()
	lines := []Line{
		{ID: uuid.New(), ProducerID: zed, Quantity: 4},
		{ID: uuid.New(), ProducerID: alpha, Quantity: 3},
		{ID: uuid.New(), ProducerID: zed, Quantity: 2},
		{ID: uuid.New(), ProducerID: alpha, Quantity: 1},
	}
	rules := map[uuid.UUID]ProducerRule{
		zed:   {ProducerID: zed, Name: "Zind-Humbrecht", Rule: enums.QuantityRuleMultiple, Step: 6},
		alpha: {ProducerID: alpha, Name: "Château X", Rule: enums.QuantityRuleMultiple, Step: 6},
	}

	report := BuildReport(lines, rules)
	if report.IsValid {
		t.Fatalf("expected invalid report")
	}
	if len(report.ProducerValidations) != 2 {
		t.Fatalf("expected 2 producer groups, got %d", len(report.ProducerValidations))
	}
	first := report.ProducerValidations[0]
	if first.ProducerName != "Château X" || first.CurrentQuantity != 4 || first.Shortfall != 2 {
		t.Fatalf("unexpected first group %+v", first)
	}
	second := report.ProducerValidations[1]
	if second.ProducerName != "Zind-Humbrecht" || !second.IsValid {
		t.Fatalf("unexpected second group %+v", second)
	}
	if len(report.Errors) != 1 || report.Errors[0] != "Château X: add 2 more bottle(s) to reach a multiple of 6" {
		t.Fatalf("unexpected errors %v", report.Errors)
	}
}

func TestBuildReportUnknownProducerUsesDefaultRule(t *testing.T) {
	producer := uuid.New()
	report := BuildReport([]Line{{ProducerID: producer, Quantity: 5}}, nil)
	if report.IsValid {
		t.Fatalf("5 bottles must fail the default multiple-of-6 rule")
	}
	pv := report.ProducerValidations[0]
	if pv.Rule != enums.QuantityRuleMultiple || pv.Step != 6 || pv.ProducerName != producer.String() {
		t.Fatalf("unexpected default rule %+v", pv)
	}
}

func TestBuildReportZeroQuantityGroupIsValid(t *testing.T) {
	report := BuildReport([]Line{{ProducerID: uuid.New(), Quantity: 0}}, nil)
	if !report.IsValid || len(report.Errors) != 0 {
		t.Fatalf("empty group must be valid, got %+v", report)
	}
}

func TestBuildReportMinimumErrorText(t *testing.T) {
	producer := uuid.New()
	rules := map[uuid.UUID]ProducerRule{producer: {ProducerID: producer, Name: "Bodega Y", Rule: enums.QuantityRuleMinimum, Step: 12}}
	report := BuildReport([]Line{{ProducerID: producer, Quantity: 10}}, rules)
	if len(report.Errors) != 1 || report.Errors[0] != "Bodega Y: add 2 more bottle(s) to reach the minimum of 12" {
		t.Fatalf("unexpected errors %v", report.Errors)
	}
}
