package domain

import (
	"fmt"
	"strings"
)

// SKU identifies a purchasable item.
type SKU struct {
	Code string
}

// Label is a key/value tag attached to items, transactions and customers.
type Label struct {
	Key   string
	Value string
}

func (l Label) Serialize() map[string]any {
	return map[string]any{"key": l.Key, "value": l.Value}
}

// Matches compares both key and value.
func (l Label) Matches(other Label) bool {
	return l.Key == other.Key && l.Value == other.Value
}

func deserializeLabels(event, field string, raw any) ([]Label, error) {
	list, ok := toList(raw)
	if !ok {
		return nil, invalidField(event, field, raw)
	}
	var labels []Label
	for i, m := range list {
		key, ok := m["key"].(string)
		if !ok {
			return nil, missingField(event, fmt.Sprintf("%s[%d].key", field, i))
		}
		labels = append(labels, Label{Key: key, Value: optionalString(m, "value")})
	}
	return labels, nil
}

func serializeLabels(labels []Label) []map[string]any {
	out := make([]map[string]any, 0, len(labels))
	for _, l := range labels {
		out = append(out, l.Serialize())
	}
	return out
}

// Coupon is the code handed to a customer for a bought campaign.
type Coupon struct {
	Code string
}

// Item is a single line of a transaction.
type Item struct {
	SKU        SKU
	Name       string
	Quantity   float64
	GrossValue float64
	Category   string
	Maker      string
	Labels     []Label
}

func (i Item) Serialize() map[string]any {
	return map[string]any{
		"sku":        map[string]any{"code": i.SKU.Code},
		"name":       i.Name,
		"quantity":   i.Quantity,
		"grossValue": i.GrossValue,
		"category":   i.Category,
		"maker":      i.Maker,
		"labels":     serializeLabels(i.Labels),
	}
}

func deserializeItem(event, field string, data map[string]any) (Item, error) {
	codes := NormalizeSKUs(data["sku"])
	if len(codes) != 1 || codes[0] == "" {
		return Item{}, missingField(event, field+".sku")
	}
	gross, err := optionalFloat(event, data, "grossValue")
	if err != nil {
		return Item{}, err
	}
	qty, err := optionalFloat(event, data, "quantity")
	if err != nil {
		return Item{}, err
	}
	labels, err := deserializeLabels(event, field+".labels", data["labels"])
	if err != nil {
		return Item{}, err
	}
	return Item{
		SKU:        SKU{Code: codes[0]},
		Name:       optionalString(data, "name"),
		Quantity:   qty,
		GrossValue: gross,
		Category:   optionalString(data, "category"),
		Maker:      optionalString(data, "maker"),
		Labels:     labels,
	}, nil
}

func deserializeItems(event string, raw any) ([]Item, error) {
	list, ok := toList(raw)
	if !ok {
		return nil, invalidField(event, "items", raw)
	}
	var items []Item
	for i, m := range list {
		item, err := deserializeItem(event, fmt.Sprintf("items[%d]", i), m)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func serializeItems(items []Item) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		out = append(out, it.Serialize())
	}
	return out
}

// CustomerBasicData is the customer snapshot stored with a transaction.
type CustomerBasicData struct {
	Email             string
	Name              string
	NIP               string
	Phone             string
	LoyaltyCardNumber string
}

func (c CustomerBasicData) Serialize() map[string]any {
	return map[string]any{
		"email":             c.Email,
		"name":              c.Name,
		"nip":               c.NIP,
		"phone":             c.Phone,
		"loyaltyCardNumber": c.LoyaltyCardNumber,
	}
}

func deserializeCustomerBasicData(data map[string]any) CustomerBasicData {
	return CustomerBasicData{
		Email:             optionalString(data, "email"),
		Name:              optionalString(data, "name"),
		NIP:               optionalString(data, "nip"),
		Phone:             optionalString(data, "phone"),
		LoyaltyCardNumber: optionalString(data, "loyaltyCardNumber"),
	}
}

// NormalizeSKUs turns raw codes, SKU values and {"code": ...} mappings into
// plain SKU codes. Values it cannot interpret are skipped.
func NormalizeSKUs(values ...any) []string {
	var out []string
	for _, v := range values {
		switch s := v.(type) {
		case nil:
		case string:
			out = append(out, s)
		case SKU:
			out = append(out, s.Code)
		case *SKU:
			if s != nil {
				out = append(out, s.Code)
			}
		case []string:
			out = append(out, s...)
		case []SKU:
			for _, sku := range s {
				out = append(out, sku.Code)
			}
		case []any:
			out = append(out, NormalizeSKUs(s...)...)
		case map[string]any:
			if code, ok := s["code"].(string); ok {
				out = append(out, code)
			}
		}
	}
	return out
}

// NormalizeLabels turns Label values, {"key","value"} mappings and "key:value"
// strings into Labels. Values it cannot interpret are skipped.
func NormalizeLabels(values ...any) []Label {
	var out []Label
	for _, v := range values {
		switch l := v.(type) {
		case nil:
		case Label:
			out = append(out, l)
		case *Label:
			if l != nil {
				out = append(out, *l)
			}
		case []Label:
			out = append(out, l...)
		case []any:
			out = append(out, NormalizeLabels(l...)...)
		case map[string]any:
			key, _ := l["key"].(string)
			out = append(out, Label{Key: key, Value: optionalString(l, "value")})
		case map[string]string:
			out = append(out, Label{Key: l["key"], Value: l["value"]})
		case string:
			key, value, _ := strings.Cut(l, ":")
			out = append(out, Label{Key: key, Value: value})
		}
	}
	return out
}
