package domain

import "time"

const campaignBoughtModel = "CampaignBought"

// CampaignBoughtID derives the row key of a purchase. The same purchase
// always maps to the same key.
func CampaignBoughtID(campaignID, customerID string, coupon Coupon) string {
	return campaignID + "_" + customerID + "_" + coupon.Code
}

// CampaignBought is the read model of one coupon bought by a customer.
type CampaignBought struct {
	CampaignID          string
	CustomerID          string
	PurchasedAt         time.Time
	Coupon              Coupon
	CampaignType        string
	CampaignName        string
	CustomerEmail       string
	CustomerPhone       string
	CustomerName        string
	CustomerLastname    string
	CostInPoints        float64
	CurrentPointsAmount int
	TaxPriceValue       *float64
	Used                *bool
	Status              string
	ActiveSince         *time.Time
	ActiveTo            *time.Time
	TransactionID       string
}

func (c CampaignBought) ID() string {
	return CampaignBoughtID(c.CampaignID, c.CustomerID, c.Coupon)
}

// IsUsed treats an unset usage flag as unused.
func (c CampaignBought) IsUsed() bool {
	return c.Used != nil && *c.Used
}

func (c CampaignBought) Serialize() map[string]any {
	return map[string]any{
		"customerId":          c.CustomerID,
		"campaignId":          c.CampaignID,
		"coupon":              c.Coupon.Code,
		"campaignType":        c.CampaignType,
		"campaignName":        c.CampaignName,
		"customerEmail":       c.CustomerEmail,
		"customerPhone":       c.CustomerPhone,
		"customerName":        c.CustomerName,
		"customerLastname":    c.CustomerLastname,
		"costInPoints":        c.CostInPoints,
		"currentPointsAmount": c.CurrentPointsAmount,
		"taxPriceValue":       floatOrNil(c.TaxPriceValue),
		"used":                boolOrNil(c.Used),
		"status":              c.Status,
		"activeSince":         unixOrNil(c.ActiveSince),
		"activeTo":            unixOrNil(c.ActiveTo),
		"transactionId":       stringOrNil(c.TransactionID),
		"purchasedAt":         c.PurchasedAt.Unix(),
	}
}

func DeserializeCampaignBought(data map[string]any) (CampaignBought, error) {
	const name = campaignBoughtModel
	customerID, err := requireString(name, data, "customerId")
	if err != nil {
		return CampaignBought{}, err
	}
	campaignID, err := requireString(name, data, "campaignId")
	if err != nil {
		return CampaignBought{}, err
	}
	coupon, err := readCoupon(name, data)
	if err != nil {
		return CampaignBought{}, err
	}
	purchasedAt, err := requireTime(name, data, "purchasedAt")
	if err != nil {
		return CampaignBought{}, err
	}
	cost, err := optionalFloat(name, data, "costInPoints")
	if err != nil {
		return CampaignBought{}, err
	}
	points, err := optionalFloat(name, data, "currentPointsAmount")
	if err != nil {
		return CampaignBought{}, err
	}
	tax, err := optionalFloatPtr(name, data, "taxPriceValue")
	if err != nil {
		return CampaignBought{}, err
	}
	used, ok := optionalBool(data, "used")
	if !ok {
		return CampaignBought{}, invalidField(name, "used", data["used"])
	}
	status, err := readStatus(name, data, "status")
	if err != nil {
		return CampaignBought{}, err
	}
	activeSince, err := optionalTime(name, data, "activeSince")
	if err != nil {
		return CampaignBought{}, err
	}
	activeTo, err := optionalTime(name, data, "activeTo")
	if err != nil {
		return CampaignBought{}, err
	}
	return CampaignBought{
		CampaignID:          campaignID,
		CustomerID:          customerID,
		PurchasedAt:         purchasedAt,
		Coupon:              coupon,
		CampaignType:        optionalString(data, "campaignType"),
		CampaignName:        optionalString(data, "campaignName"),
		CustomerEmail:       optionalString(data, "customerEmail"),
		CustomerPhone:       optionalString(data, "customerPhone"),
		CustomerName:        optionalString(data, "customerName"),
		CustomerLastname:    optionalString(data, "customerLastname"),
		CostInPoints:        cost,
		CurrentPointsAmount: int(points),
		TaxPriceValue:       tax,
		Used:                used,
		Status:              status,
		ActiveSince:         activeSince,
		ActiveTo:            activeTo,
		TransactionID:       optionalString(data, "transactionId"),
	}, nil
}

// Campaign is the catalog entry a purchase refers to. It is maintained
// outside this service and only read here.
type Campaign struct {
	ID               string   `json:"campaignId"`
	Name             string   `json:"name"`
	Reward           string   `json:"reward"`
	CostInPoints     float64  `json:"costInPoints"`
	TaxPriceValue    *float64 `json:"taxPriceValue,omitempty"`
	UsageInstruction string   `json:"usageInstruction,omitempty"`
}
