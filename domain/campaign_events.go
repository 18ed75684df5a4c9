package domain

import (
	"slices"
	"time"
)

const (
	CampaignWasBoughtByCustomerType = "CampaignWasBoughtByCustomer"
	CampaignUsageWasChangedType     = "CampaignUsageWasChanged"
	CampaignStatusWasChangedType    = "CampaignStatusWasChanged"
)

// Campaign purchase statuses.
const (
	CampaignStatusActive    = "active"
	CampaignStatusInactive  = "inactive"
	CampaignStatusCancelled = "cancelled"
	CampaignStatusExpired   = "expired"
)

var campaignStatuses = []string{CampaignStatusActive, CampaignStatusInactive, CampaignStatusCancelled, CampaignStatusExpired}

// Campaign reward types.
const (
	RewardDiscountCode     = "discount_code"
	RewardEventCode        = "event_code"
	RewardFreeDeliveryCode = "free_delivery_code"
	RewardGiftCode         = "gift_code"
	RewardValueCode        = "value_code"
	RewardCashback         = "cashback"
)

func readStatus(event string, data map[string]any, key string) (string, error) {
	status := optionalString(data, key)
	if status == "" {
		return CampaignStatusActive, nil
	}
	if !slices.Contains(campaignStatuses, status) {
		return "", invalidField(event, key, status)
	}
	return status, nil
}

func readCoupon(event string, data map[string]any) (Coupon, error) {
	switch v := data["coupon"].(type) {
	case map[string]any:
		code, err := requireString(event, v, "code")
		if err != nil {
			return Coupon{}, missingField(event, "coupon")
		}
		return Coupon{Code: code}, nil
	case Coupon:
		if v.Code != "" {
			return v, nil
		}
	}
	code, err := requireString(event, data, "coupon")
	if err != nil {
		return Coupon{}, err
	}
	return Coupon{Code: code}, nil
}

// CampaignWasBoughtByCustomer records a campaign purchase with its coupon.
type CampaignWasBoughtByCustomer struct {
	CustomerID    string
	CampaignID    string
	CampaignName  string
	CostInPoints  float64
	Coupon        Coupon
	Reward        string
	Status        string
	ActiveSince   *time.Time
	ActiveTo      *time.Time
	TransactionID string
	CreatedAt     time.Time
}

// NewCampaignWasBoughtByCustomer builds an active purchase stamped with the
// current time.
func NewCampaignWasBoughtByCustomer(customerID, campaignID, campaignName string, costInPoints float64, coupon Coupon, reward string) CampaignWasBoughtByCustomer {
	return CampaignWasBoughtByCustomer{
		CustomerID:   customerID,
		CampaignID:   campaignID,
		CampaignName: campaignName,
		CostInPoints: costInPoints,
		Coupon:       coupon,
		Reward:       reward,
		Status:       CampaignStatusActive,
		CreatedAt:    now(),
	}
}

func (e CampaignWasBoughtByCustomer) EventType() string   { return CampaignWasBoughtByCustomerType }
func (e CampaignWasBoughtByCustomer) AggregateID() string { return e.CustomerID }

func (e CampaignWasBoughtByCustomer) Serialize() map[string]any {
	return map[string]any{
		"customerId":    e.CustomerID,
		"campaignId":    e.CampaignID,
		"campaignName":  e.CampaignName,
		"costInPoints":  e.CostInPoints,
		"coupon":        e.Coupon.Code,
		"reward":        e.Reward,
		"status":        e.Status,
		"activeSince":   unixOrNil(e.ActiveSince),
		"activeTo":      unixOrNil(e.ActiveTo),
		"transactionId": stringOrNil(e.TransactionID),
		"createdAt":     e.CreatedAt.Unix(),
	}
}

func DeserializeCampaignWasBoughtByCustomer(data map[string]any) (CampaignWasBoughtByCustomer, error) {
	const name = CampaignWasBoughtByCustomerType
	customerID, err := requireID(name, data, "customerId")
	if err != nil {
		return CampaignWasBoughtByCustomer{}, err
	}
	campaignID, err := requireID(name, data, "campaignId")
	if err != nil {
		return CampaignWasBoughtByCustomer{}, err
	}
	coupon, err := readCoupon(name, data)
	if err != nil {
		return CampaignWasBoughtByCustomer{}, err
	}
	cost, err := optionalFloat(name, data, "costInPoints")
	if err != nil {
		return CampaignWasBoughtByCustomer{}, err
	}
	status, err := readStatus(name, data, "status")
	if err != nil {
		return CampaignWasBoughtByCustomer{}, err
	}
	activeSince, err := optionalTime(name, data, "activeSince")
	if err != nil {
		return CampaignWasBoughtByCustomer{}, err
	}
	activeTo, err := optionalTime(name, data, "activeTo")
	if err != nil {
		return CampaignWasBoughtByCustomer{}, err
	}
	createdAt, err := timeOrNow(name, data, "createdAt")
	if err != nil {
		return CampaignWasBoughtByCustomer{}, err
	}
	return CampaignWasBoughtByCustomer{
		CustomerID:    customerID,
		CampaignID:    campaignID,
		CampaignName:  optionalString(data, "campaignName"),
		CostInPoints:  cost,
		Coupon:        coupon,
		Reward:        optionalString(data, "reward"),
		Status:        status,
		ActiveSince:   activeSince,
		ActiveTo:      activeTo,
		TransactionID: optionalString(data, "transactionId"),
		CreatedAt:     createdAt,
	}, nil
}

// CampaignUsageWasChanged marks a bought coupon as used or unused.
type CampaignUsageWasChanged struct {
	CustomerID string
	CampaignID string
	Coupon     Coupon
	Used       bool
}

func (e CampaignUsageWasChanged) EventType() string   { return CampaignUsageWasChangedType }
func (e CampaignUsageWasChanged) AggregateID() string { return e.CustomerID }

func (e CampaignUsageWasChanged) Serialize() map[string]any {
	return map[string]any{
		"customerId": e.CustomerID,
		"campaignId": e.CampaignID,
		"coupon":     e.Coupon.Code,
		"used":       e.Used,
	}
}

func DeserializeCampaignUsageWasChanged(data map[string]any) (CampaignUsageWasChanged, error) {
	const name = CampaignUsageWasChangedType
	customerID, err := requireID(name, data, "customerId")
	if err != nil {
		return CampaignUsageWasChanged{}, err
	}
	campaignID, err := requireID(name, data, "campaignId")
	if err != nil {
		return CampaignUsageWasChanged{}, err
	}
	coupon, err := readCoupon(name, data)
	if err != nil {
		return CampaignUsageWasChanged{}, err
	}
	used, ok := optionalBool(data, "used")
	if !ok {
		return CampaignUsageWasChanged{}, invalidField(name, "used", data["used"])
	}
	if used == nil {
		return CampaignUsageWasChanged{}, missingField(name, "used")
	}
	return CampaignUsageWasChanged{CustomerID: customerID, CampaignID: campaignID, Coupon: coupon, Used: *used}, nil
}

// CampaignStatusWasChanged moves a bought campaign to another status.
type CampaignStatusWasChanged struct {
	CustomerID string
	CampaignID string
	Coupon     Coupon
	Status     string
}

func (e CampaignStatusWasChanged) EventType() string   { return CampaignStatusWasChangedType }
func (e CampaignStatusWasChanged) AggregateID() string { return e.CustomerID }

func (e CampaignStatusWasChanged) Serialize() map[string]any {
	return map[string]any{
		"customerId": e.CustomerID,
		"campaignId": e.CampaignID,
		"coupon":     e.Coupon.Code,
		"status":     e.Status,
	}
}

func DeserializeCampaignStatusWasChanged(data map[string]any) (CampaignStatusWasChanged, error) {
	const name = CampaignStatusWasChangedType
	customerID, err := requireID(name, data, "customerId")
	if err != nil {
		return CampaignStatusWasChanged{}, err
	}
	campaignID, err := requireID(name, data, "campaignId")
	if err != nil {
		return CampaignStatusWasChanged{}, err
	}
	coupon, err := readCoupon(name, data)
	if err != nil {
		return CampaignStatusWasChanged{}, err
	}
	if _, err := requireString(name, data, "status"); err != nil {
		return CampaignStatusWasChanged{}, err
	}
	status, err := readStatus(name, data, "status")
	if err != nil {
		return CampaignStatusWasChanged{}, err
	}
	return CampaignStatusWasChanged{CustomerID: customerID, CampaignID: campaignID, Coupon: coupon, Status: status}, nil
}
