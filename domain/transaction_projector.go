package domain

import "context"

// TransactionDetailsProjector maintains TransactionDetails rows.
type TransactionDetailsProjector struct {
	repo TransactionRepository
}

func NewTransactionDetailsProjector(repo TransactionRepository) *TransactionDetailsProjector {
	return &TransactionDetailsProjector{repo: repo}
}

func (p *TransactionDetailsProjector) Name() string { return transactionDetailsModel }

func (p *TransactionDetailsProjector) Subscriptions() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		TransactionWasRegisteredType:         handle(p.registered),
		CustomerWasAssignedToTransactionType: handle(p.customerAssigned),
		LabelsWereAppendedToTransactionType:  handle(p.labelsAppended),
	}
}

// registered upserts the row. A replayed registration overwrites the
// snapshot but keeps the customer assignment.
func (p *TransactionDetailsProjector) registered(ctx context.Context, e TransactionWasRegistered) error {
	t := TransactionDetails{
		TransactionID:           e.TransactionID,
		DocumentNumber:          e.DocumentNumber,
		PurchaseDate:            e.PurchaseDate,
		PurchasePlace:           e.PurchasePlace,
		DocumentType:            e.DocumentType,
		CustomerData:            e.CustomerData,
		Items:                   e.Items,
		Labels:                  e.Labels,
		PosID:                   e.PosID,
		ExcludedDeliverySKUs:    e.ExcludedDeliverySKUs,
		ExcludedLevelSKUs:       e.ExcludedLevelSKUs,
		ExcludedLevelCategories: e.ExcludedLevelCategories,
		RevisedDocument:         e.RevisedDocument,
	}
	if t.DocumentType == "" {
		t.DocumentType = TransactionTypeSell
	}
	existing, err := p.repo.FindTransaction(ctx, e.TransactionID)
	if err != nil {
		return err
	}
	if existing != nil {
		t.CustomerID = existing.CustomerID
	}
	return p.repo.UpsertTransaction(ctx, t)
}

func (p *TransactionDetailsProjector) customerAssigned(ctx context.Context, e CustomerWasAssignedToTransaction) error {
	t, err := p.load(ctx, e.TransactionID, e.EventType())
	if err != nil {
		return err
	}
	t.CustomerID = e.CustomerID
	return p.repo.UpsertTransaction(ctx, *t)
}

// labelsAppended is not idempotent: a redelivered event appends twice.
func (p *TransactionDetailsProjector) labelsAppended(ctx context.Context, e LabelsWereAppendedToTransaction) error {
	t, err := p.load(ctx, e.TransactionID, e.EventType())
	if err != nil {
		return err
	}
	t.AppendLabels(e.Labels)
	return p.repo.UpsertTransaction(ctx, *t)
}

func (p *TransactionDetailsProjector) load(ctx context.Context, id, event string) (*TransactionDetails, error) {
	t, err := p.repo.FindTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, &MissingReadModelRowError{Model: transactionDetailsModel, Key: id, Event: event}
	}
	return t, nil
}
