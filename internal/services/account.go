package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/harshite737-crypto/haste/internal/model"
	"github.com/harshite737-crypto/haste/internal/plans"
	"github.com/harshite737-crypto/haste/internal/store"
)

// AccountService resolves the plan an identity is on and applies upgrades.
type AccountService struct {
	accounts store.Accounts
	catalog  *plans.Catalog
}

func NewAccountService(accounts store.Accounts, catalog *plans.Catalog) *AccountService {
	return &AccountService{accounts: accounts, catalog: catalog}
}

// PlanFor returns the plan of id. Identities without an account get the
// default plan. Owner mode is a session grant, not a plan.
func (s *AccountService) PlanFor(ctx context.Context, id model.Identity) (model.Plan, error) {
	acct, err := s.accounts.Get(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return s.catalog.Default(), nil
	}
	if err != nil {
		return model.Plan{}, fmt.Errorf("load account: %w", err)
	}
	return s.catalog.Resolve(acct.Plan), nil
}

// Upgrade moves id onto the named plan.
func (s *AccountService) Upgrade(ctx context.Context, id model.Identity, plan string) error {
	if id == "" {
		return model.NewValidationError("identity", "is required")
	}
	if _, ok := s.catalog.Get(plan); !ok {
		return model.NewValidationError("plan", fmt.Sprintf("unknown plan %q", plan))
	}
	return s.accounts.Upgrade(ctx, id, plan)
}

// Unlimited returns the plan applied under an owner grant.
func (s *AccountService) Unlimited() model.Plan { return s.catalog.Unlimited() }

// Plans lists the configured plans.
func (s *AccountService) Plans() []model.Plan { return s.catalog.List() }
