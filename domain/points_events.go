package domain

const (
	AccountWasCreatedType = "AccountWasCreated"
	PointsWereAddedType   = "PointsWereAdded"
	PointsWereSpentType   = "PointsWereSpent"
)

// AccountWasCreated opens the points account of a customer.
type AccountWasCreated struct {
	AccountID  string
	CustomerID string
}

func (e AccountWasCreated) EventType() string   { return AccountWasCreatedType }
func (e AccountWasCreated) AggregateID() string { return e.AccountID }

func (e AccountWasCreated) Serialize() map[string]any {
	return map[string]any{"accountId": e.AccountID, "customerId": e.CustomerID}
}

func DeserializeAccountWasCreated(data map[string]any) (AccountWasCreated, error) {
	accountID, err := requireID(AccountWasCreatedType, data, "accountId")
	if err != nil {
		return AccountWasCreated{}, err
	}
	customerID, err := requireID(AccountWasCreatedType, data, "customerId")
	if err != nil {
		return AccountWasCreated{}, err
	}
	return AccountWasCreated{AccountID: accountID, CustomerID: customerID}, nil
}

// PointsTransfer is the common payload of points movements.
type PointsTransfer struct {
	AccountID  string
	CustomerID string
	TransferID string
	Points     float64
	Comment    string
}

func (t PointsTransfer) serialize() map[string]any {
	return map[string]any{
		"accountId":  t.AccountID,
		"customerId": t.CustomerID,
		"transferId": stringOrNil(t.TransferID),
		"points":     t.Points,
		"comment":    stringOrNil(t.Comment),
	}
}

func deserializePointsTransfer(event string, data map[string]any) (PointsTransfer, error) {
	accountID, err := requireID(event, data, "accountId")
	if err != nil {
		return PointsTransfer{}, err
	}
	customerID, err := requireID(event, data, "customerId")
	if err != nil {
		return PointsTransfer{}, err
	}
	raw, ok := data["points"]
	if !ok || raw == nil {
		return PointsTransfer{}, missingField(event, "points")
	}
	points, ok := toFloat(raw)
	if !ok || points < 0 {
		return PointsTransfer{}, invalidField(event, "points", raw)
	}
	return PointsTransfer{
		AccountID:  accountID,
		CustomerID: customerID,
		TransferID: optionalString(data, "transferId"),
		Points:     points,
		Comment:    optionalString(data, "comment"),
	}, nil
}

// PointsWereAdded credits an account.
type PointsWereAdded struct{ PointsTransfer }

func (e PointsWereAdded) EventType() string         { return PointsWereAddedType }
func (e PointsWereAdded) AggregateID() string       { return e.AccountID }
func (e PointsWereAdded) Serialize() map[string]any { return e.serialize() }

func DeserializePointsWereAdded(data map[string]any) (PointsWereAdded, error) {
	t, err := deserializePointsTransfer(PointsWereAddedType, data)
	return PointsWereAdded{t}, err
}

// PointsWereSpent debits an account.
type PointsWereSpent struct{ PointsTransfer }

func (e PointsWereSpent) EventType() string         { return PointsWereSpentType }
func (e PointsWereSpent) AggregateID() string       { return e.AccountID }
func (e PointsWereSpent) Serialize() map[string]any { return e.serialize() }

func DeserializePointsWereSpent(data map[string]any) (PointsWereSpent, error) {
	t, err := deserializePointsTransfer(PointsWereSpentType, data)
	return PointsWereSpent{t}, err
}
