package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/palletwine/palletwine-backend/internal/validation"
	"github.com/palletwine/palletwine-backend/pkg/db/models"
)

const validatorName = "cart_quantity_rules"

type cartReader interface {
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.CartItem, error)
	FindProducers(ctx context.Context, ids []uuid.UUID) ([]models.Producer, error)
}

// Validator applies producer quantity rules to carts. It fails open: a
// broken lookup never blocks checkout.
type Validator struct {
	repo   cartReader
	cache  ReportCache
	runner *validation.Runner
}

func NewValidator(repo cartReader, cache ReportCache, runner *validation.Runner) (*Validator, error) {
	if repo == nil {
		return nil, errors.New("cart repository required")
	}
	if cache == nil {
		cache = noopCache{}
	}
	return &Validator{repo: repo, cache: cache, runner: runner}, nil
}

// ValidateCustomerCart validates the customer's persisted cart.
func (v *Validator) ValidateCustomerCart(ctx context.Context, customerID uuid.UUID) (Report, error) {
	return validation.Run(ctx, v.runner, validatorName, validation.FailOpen, PassReport(), func(ctx context.Context) (Report, error) {
		items, err := v.repo.ListByCustomer(ctx, customerID)
		if err != nil {
			return Report{}, err
		}
		return v.evaluate(ctx, customerID, LinesFromCartItems(items))
	})
}

// ValidateLines validates caller-supplied lines for stateless clients.
func (v *Validator) ValidateLines(ctx context.Context, customerID uuid.UUID, lines []Line) (Report, error) {
	return validation.Run(ctx, v.runner, validatorName, validation.FailOpen, PassReport(), func(ctx context.Context) (Report, error) {
		return v.evaluate(ctx, customerID, lines)
	})
}

func (v *Validator) evaluate(ctx context.Context, customerID uuid.UUID, lines []Line) (Report, error) {
	if len(lines) == 0 {
		return PassReport(), nil
	}

	key := CacheKey(customerID, lines)
	if cached, ok := v.cache.Get(key); ok {
		return cached, nil
	}

	producers, err := v.repo.FindProducers(ctx, producerIDs(lines))
	if err != nil {
		return Report{}, err
	}
	rules := make(map[uuid.UUID]ProducerRule, len(producers))
	for _, p := range producers {
		rules[p.ID] = RuleFromProducer(p)
	}

	report := BuildReport(lines, rules)
	v.cache.Add(key, report)
	return report, nil
}

func producerIDs(lines []Line) []uuid.UUID {
	seen := map[uuid.UUID]struct{}{}
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProducerID]; ok {
			continue
		}
		seen[line.ProducerID] = struct{}{}
		ids = append(ids, line.ProducerID)
	}
	return ids
}
