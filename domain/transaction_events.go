package domain

import "time"

const (
	TransactionWasRegisteredType         = "TransactionWasRegistered"
	CustomerWasAssignedToTransactionType = "CustomerWasAssignedToTransaction"
	LabelsWereAppendedToTransactionType  = "LabelsWereAppendedToTransaction"
)

// Transaction document types.
const (
	TransactionTypeSell   = "sell"
	TransactionTypeReturn = "return"
)

// TransactionWasRegistered opens a transaction aggregate.
type TransactionWasRegistered struct {
	TransactionID           string
	DocumentNumber          string
	DocumentType            string
	PurchaseDate            time.Time
	PurchasePlace           string
	CustomerData            CustomerBasicData
	Items                   []Item
	PosID                   string
	ExcludedDeliverySKUs    []string
	ExcludedLevelSKUs       []string
	ExcludedLevelCategories []string
	RevisedDocument         string
	Labels                  []Label
}

func (e TransactionWasRegistered) EventType() string   { return TransactionWasRegisteredType }
func (e TransactionWasRegistered) AggregateID() string { return e.TransactionID }

func (e TransactionWasRegistered) Serialize() map[string]any {
	return map[string]any{
		"transactionId": e.TransactionID,
		"transactionData": map[string]any{
			"documentNumber": e.DocumentNumber,
			"documentType":   e.DocumentType,
			"purchaseDate":   e.PurchaseDate.Unix(),
			"purchasePlace":  e.PurchasePlace,
		},
		"customerData":            e.CustomerData.Serialize(),
		"items":                   serializeItems(e.Items),
		"posId":                   stringOrNil(e.PosID),
		"excludedDeliverySKUs":    copyStrings(e.ExcludedDeliverySKUs),
		"excludedLevelSKUs":       copyStrings(e.ExcludedLevelSKUs),
		"excludedLevelCategories": copyStrings(e.ExcludedLevelCategories),
		"revisedDocument":         stringOrNil(e.RevisedDocument),
		"labels":                  serializeLabels(e.Labels),
	}
}

func DeserializeTransactionWasRegistered(data map[string]any) (TransactionWasRegistered, error) {
	const name = TransactionWasRegisteredType
	id, err := requireID(name, data, "transactionId")
	if err != nil {
		return TransactionWasRegistered{}, err
	}
	td, err := requireMap(name, data, "transactionData")
	if err != nil {
		return TransactionWasRegistered{}, err
	}
	docNumber, err := requireString(name, td, "documentNumber")
	if err != nil {
		return TransactionWasRegistered{}, err
	}
	purchaseDate, err := requireTime(name, td, "purchaseDate")
	if err != nil {
		return TransactionWasRegistered{}, err
	}
	cd, err := requireMap(name, data, "customerData")
	if err != nil {
		return TransactionWasRegistered{}, err
	}
	items, err := deserializeItems(name, data["items"])
	if err != nil {
		return TransactionWasRegistered{}, err
	}
	labels, err := deserializeLabels(name, "labels", data["labels"])
	if err != nil {
		return TransactionWasRegistered{}, err
	}
	ev := TransactionWasRegistered{
		TransactionID:   id,
		DocumentNumber:  docNumber,
		DocumentType:    optionalString(td, "documentType"),
		PurchaseDate:    purchaseDate,
		PurchasePlace:   optionalString(td, "purchasePlace"),
		CustomerData:    deserializeCustomerBasicData(cd),
		Items:           items,
		PosID:           optionalString(data, "posId"),
		RevisedDocument: optionalString(data, "revisedDocument"),
		Labels:          labels,
	}
	if ev.DocumentType == "" {
		ev.DocumentType = TransactionTypeSell
	}
	for key, dst := range map[string]*[]string{
		"excludedDeliverySKUs":    &ev.ExcludedDeliverySKUs,
		"excludedLevelSKUs":       &ev.ExcludedLevelSKUs,
		"excludedLevelCategories": &ev.ExcludedLevelCategories,
	} {
		list, ok := toStrings(data[key])
		if !ok {
			return TransactionWasRegistered{}, invalidField(name, key, data[key])
		}
		*dst = list
	}
	return ev, nil
}

// CustomerWasAssignedToTransaction links a transaction to a customer.
type CustomerWasAssignedToTransaction struct {
	TransactionID string
	CustomerID    string
}

func (e CustomerWasAssignedToTransaction) EventType() string {
	return CustomerWasAssignedToTransactionType
}
func (e CustomerWasAssignedToTransaction) AggregateID() string { return e.TransactionID }

func (e CustomerWasAssignedToTransaction) Serialize() map[string]any {
	return map[string]any{
		"transactionId": e.TransactionID,
		"customerId":    e.CustomerID,
	}
}

func DeserializeCustomerWasAssignedToTransaction(data map[string]any) (CustomerWasAssignedToTransaction, error) {
	const name = CustomerWasAssignedToTransactionType
	txID, err := requireID(name, data, "transactionId")
	if err != nil {
		return CustomerWasAssignedToTransaction{}, err
	}
	customerID, err := requireID(name, data, "customerId")
	if err != nil {
		return CustomerWasAssignedToTransaction{}, err
	}
	return CustomerWasAssignedToTransaction{TransactionID: txID, CustomerID: customerID}, nil
}

// LabelsWereAppendedToTransaction adds labels to an existing transaction.
type LabelsWereAppendedToTransaction struct {
	TransactionID string
	Labels        []Label
}

func (e LabelsWereAppendedToTransaction) EventType() string {
	return LabelsWereAppendedToTransactionType
}
func (e LabelsWereAppendedToTransaction) AggregateID() string { return e.TransactionID }

func (e LabelsWereAppendedToTransaction) Serialize() map[string]any {
	return map[string]any{
		"transactionId": e.TransactionID,
		"labels":        serializeLabels(e.Labels),
	}
}

func DeserializeLabelsWereAppendedToTransaction(data map[string]any) (LabelsWereAppendedToTransaction, error) {
	const name = LabelsWereAppendedToTransactionType
	txID, err := requireID(name, data, "transactionId")
	if err != nil {
		return LabelsWereAppendedToTransaction{}, err
	}
	if _, ok := data["labels"]; !ok {
		return LabelsWereAppendedToTransaction{}, missingField(name, "labels")
	}
	labels, err := deserializeLabels(name, "labels", data["labels"])
	if err != nil {
		return LabelsWereAppendedToTransaction{}, err
	}
	return LabelsWereAppendedToTransaction{TransactionID: txID, Labels: labels}, nil
}
