package domain

import (
	"slices"
	"time"

	"github.com/bytedance/sonic"
)

const transactionDetailsModel = "TransactionDetails"

// TransactionDetails is the denormalized read model of a registered
// transaction, keyed by transaction id.
type TransactionDetails struct {
	TransactionID           string
	DocumentNumber          string
	PurchaseDate            time.Time
	PurchasePlace           string
	DocumentType            string
	CustomerID              string
	CustomerData            CustomerBasicData
	Items                   []Item
	Labels                  []Label
	PosID                   string
	ExcludedDeliverySKUs    []string
	ExcludedLevelSKUs       []string
	ExcludedLevelCategories []string
	RevisedDocument         string
}

func (t TransactionDetails) ID() string { return t.TransactionID }

// Serialize produces the persisted and public representation. The excluded
// lists are stored as JSON strings.
func (t TransactionDetails) Serialize() map[string]any {
	return map[string]any{
		"customerId":              stringOrNil(t.CustomerID),
		"transactionId":           t.TransactionID,
		"documentType":            t.DocumentType,
		"documentNumber":          t.DocumentNumber,
		"documentNumberRaw":       t.DocumentNumber,
		"purchaseDate":            t.PurchaseDate.Unix(),
		"purchasePlace":           t.PurchasePlace,
		"customerData":            t.CustomerData.Serialize(),
		"items":                   serializeItems(t.Items),
		"posId":                   stringOrNil(t.PosID),
		"excludedDeliverySKUs":    encodeList(t.ExcludedDeliverySKUs),
		"excludedLevelSKUs":       encodeList(t.ExcludedLevelSKUs),
		"excludedLevelCategories": encodeList(t.ExcludedLevelCategories),
		"revisedDocument":         stringOrNil(t.RevisedDocument),
		"labels":                  serializeLabels(t.Labels),
	}
}

func DeserializeTransactionDetails(data map[string]any) (TransactionDetails, error) {
	const name = transactionDetailsModel
	id, err := requireString(name, data, "transactionId")
	if err != nil {
		return TransactionDetails{}, err
	}
	purchaseDate, err := requireTime(name, data, "purchaseDate")
	if err != nil {
		return TransactionDetails{}, err
	}
	cd, err := requireMap(name, data, "customerData")
	if err != nil {
		return TransactionDetails{}, err
	}
	items, err := deserializeItems(name, data["items"])
	if err != nil {
		return TransactionDetails{}, err
	}
	labels, err := deserializeLabels(name, "labels", data["labels"])
	if err != nil {
		return TransactionDetails{}, err
	}
	t := TransactionDetails{
		TransactionID:   id,
		DocumentNumber:  optionalString(data, "documentNumber"),
		PurchaseDate:    purchaseDate,
		PurchasePlace:   optionalString(data, "purchasePlace"),
		DocumentType:    optionalString(data, "documentType"),
		CustomerID:      optionalString(data, "customerId"),
		CustomerData:    deserializeCustomerBasicData(cd),
		Items:           items,
		Labels:          labels,
		PosID:           optionalString(data, "posId"),
		RevisedDocument: optionalString(data, "revisedDocument"),
	}
	if t.DocumentType == "" {
		t.DocumentType = TransactionTypeSell
	}
	for key, dst := range map[string]*[]string{
		"excludedDeliverySKUs":    &t.ExcludedDeliverySKUs,
		"excludedLevelSKUs":       &t.ExcludedLevelSKUs,
		"excludedLevelCategories": &t.ExcludedLevelCategories,
	} {
		list, ok := decodeList(data[key])
		if !ok {
			return TransactionDetails{}, invalidField(name, key, data[key])
		}
		*dst = list
	}
	return t, nil
}

func encodeList(list []string) any {
	if len(list) == 0 {
		return nil
	}
	s, err := sonic.ConfigStd.MarshalToString(list)
	if err != nil {
		return nil
	}
	return s
}

// decodeList accepts the JSON-string form as well as a plain list.
func decodeList(raw any) ([]string, bool) {
	s, ok := raw.(string)
	if !ok {
		return toStrings(raw)
	}
	if s == "" {
		return nil, true
	}
	var list []string
	if err := sonic.ConfigStd.UnmarshalFromString(s, &list); err != nil {
		return nil, false
	}
	if len(list) == 0 {
		return nil, true
	}
	return list, true
}

// AppendLabels adds labels after the existing ones.
func (t *TransactionDetails) AppendLabels(labels []Label) {
	t.Labels = append(t.Labels, labels...)
}

// ItemFilter selects the items that count toward a transaction value.
// Build it with NewItemFilter when the inputs come in mixed forms.
type ItemFilter struct {
	ExcludeSKUs     []string
	ExcludeLabels   []Label
	IncludeLabels   []Label
	ExcludeDelivery bool
}

// NewItemFilter normalizes SKU and label arguments given as codes, value
// objects or mappings.
func NewItemFilter(excludeSKUs, excludeLabels, includeLabels []any, excludeDelivery bool) ItemFilter {
	return ItemFilter{
		ExcludeSKUs:     NormalizeSKUs(excludeSKUs...),
		ExcludeLabels:   NormalizeLabels(excludeLabels...),
		IncludeLabels:   NormalizeLabels(includeLabels...),
		ExcludeDelivery: excludeDelivery,
	}
}

// GetFilteredItems applies the filter in three tiers: an excluded SKU drops
// the item; otherwise, when exclude labels are given, any matching label
// drops it and include labels are ignored; otherwise, when include labels
// are given, the item needs at least one matching label.
func (t TransactionDetails) GetFilteredItems(f ItemFilter) []Item {
	excludeSKUs := f.ExcludeSKUs
	if f.ExcludeDelivery && len(t.ExcludedDeliverySKUs) > 0 {
		excludeSKUs = append(slices.Clip(excludeSKUs), t.ExcludedDeliverySKUs...)
	}

	out := make([]Item, 0, len(t.Items))
	for _, item := range t.Items {
		if slices.Contains(excludeSKUs, item.SKU.Code) {
			continue
		}
		if len(f.ExcludeLabels) > 0 {
			if hasAnyLabel(item, f.ExcludeLabels) {
				continue
			}
		} else if len(f.IncludeLabels) > 0 {
			if !hasAnyLabel(item, f.IncludeLabels) {
				continue
			}
		}
		out = append(out, item)
	}
	return out
}

func hasAnyLabel(item Item, wanted []Label) bool {
	for _, w := range wanted {
		for _, l := range item.Labels {
			if l.Matches(w) {
				return true
			}
		}
	}
	return false
}

// GetGrossValue sums the gross value of the filtered items.
func (t TransactionDetails) GetGrossValue(f ItemFilter) float64 {
	var sum float64
	for _, item := range t.GetFilteredItems(f) {
		sum += item.GrossValue
	}
	return sum
}

// GetGrossValueWithoutDeliveryCosts is GetGrossValue with the stored
// delivery SKUs excluded.
func (t TransactionDetails) GetGrossValueWithoutDeliveryCosts(excludeSKUs []string, excludeLabels, includeLabels []Label) float64 {
	return t.GetGrossValue(ItemFilter{
		ExcludeSKUs:     excludeSKUs,
		ExcludeLabels:   excludeLabels,
		IncludeLabels:   includeLabels,
		ExcludeDelivery: true,
	})
}

// GetAmountExcludedForLevel adds the value of items with an excluded SKU to
// the value of items with an excluded category. An item matching both lists
// is counted twice.
func (t TransactionDetails) GetAmountExcludedForLevel() float64 {
	var bySKU, byCategory float64
	for _, item := range t.Items {
		if slices.Contains(t.ExcludedLevelSKUs, item.SKU.Code) {
			bySKU += item.GrossValue
		}
	}
	for _, item := range t.Items {
		if slices.Contains(t.ExcludedLevelCategories, item.Category) {
			byCategory += item.GrossValue
		}
	}
	return bySKU + byCategory
}
