package domain

import "context"

// AccountDetailsProjector keeps the points balance per customer. Points
// movements are applied as increments, so a redelivered transfer is counted
// twice.
type AccountDetailsProjector struct {
	repo AccountRepository
}

func NewAccountDetailsProjector(repo AccountRepository) *AccountDetailsProjector {
	return &AccountDetailsProjector{repo: repo}
}

func (p *AccountDetailsProjector) Name() string { return accountDetailsModel }

func (p *AccountDetailsProjector) Subscriptions() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		AccountWasCreatedType: handle(p.created),
		PointsWereAddedType:   handle(p.pointsAdded),
		PointsWereSpentType:   handle(p.pointsSpent),
	}
}

func (p *AccountDetailsProjector) created(ctx context.Context, e AccountWasCreated) error {
	a := AccountDetails{AccountID: e.AccountID, CustomerID: e.CustomerID}
	existing, err := p.repo.FindAccount(ctx, e.CustomerID)
	if err != nil {
		return err
	}
	if existing != nil {
		a.AvailableAmount = existing.AvailableAmount
		a.EarnedAmount = existing.EarnedAmount
		a.SpentAmount = existing.SpentAmount
	}
	return p.repo.UpsertAccount(ctx, a)
}

func (p *AccountDetailsProjector) pointsAdded(ctx context.Context, e PointsWereAdded) error {
	a, err := p.load(ctx, e.CustomerID, e.EventType())
	if err != nil {
		return err
	}
	a.AvailableAmount += e.Points
	a.EarnedAmount += e.Points
	return p.repo.UpsertAccount(ctx, *a)
}

func (p *AccountDetailsProjector) pointsSpent(ctx context.Context, e PointsWereSpent) error {
	a, err := p.load(ctx, e.CustomerID, e.EventType())
	if err != nil {
		return err
	}
	a.AvailableAmount -= e.Points
	a.SpentAmount += e.Points
	return p.repo.UpsertAccount(ctx, *a)
}

func (p *AccountDetailsProjector) load(ctx context.Context, customerID, event string) (*AccountDetails, error) {
	a, err := p.repo.FindAccount(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, &MissingReadModelRowError{Model: accountDetailsModel, Key: customerID, Event: event}
	}
	return a, nil
}
