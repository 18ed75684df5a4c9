package domain

import "time"

const (
	customerDetailsModel = "CustomerDetails"
	accountDetailsModel  = "AccountDetails"
)

// CustomerDetails is the customer read model keyed by customer id.
type CustomerDetails struct {
	CustomerID             string
	FirstName              string
	LastName               string
	Gender                 string
	Email                  string
	Phone                  string
	LoyaltyCardNumber      string
	BirthDate              *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
	Agreement1             bool
	Agreement2             bool
	Agreement3             bool
	Labels                 []Label
	TransactionsCount      int
	TransactionsAmount     float64
	CampaignPurchasesCount int
}

func (c CustomerDetails) ID() string { return c.CustomerID }

func (c CustomerDetails) Serialize() map[string]any {
	return map[string]any{
		"customerId":             c.CustomerID,
		"firstName":              c.FirstName,
		"lastName":               c.LastName,
		"gender":                 c.Gender,
		"email":                  c.Email,
		"phone":                  c.Phone,
		"loyaltyCardNumber":      c.LoyaltyCardNumber,
		"birthDate":              unixOrNil(c.BirthDate),
		"createdAt":              c.CreatedAt.Unix(),
		"updatedAt":              c.UpdatedAt.Unix(),
		"agreement1":             c.Agreement1,
		"agreement2":             c.Agreement2,
		"agreement3":             c.Agreement3,
		"labels":                 serializeLabels(c.Labels),
		"transactionsCount":      c.TransactionsCount,
		"transactionsAmount":     c.TransactionsAmount,
		"campaignPurchasesCount": c.CampaignPurchasesCount,
	}
}

func DeserializeCustomerDetails(data map[string]any) (CustomerDetails, error) {
	const name = customerDetailsModel
	id, err := requireString(name, data, "customerId")
	if err != nil {
		return CustomerDetails{}, err
	}
	cd, err := deserializeCustomerData(name, data)
	if err != nil {
		return CustomerDetails{}, err
	}
	updatedAt, err := timeOrNow(name, data, "updatedAt")
	if err != nil {
		return CustomerDetails{}, err
	}
	count, err := optionalFloat(name, data, "transactionsCount")
	if err != nil {
		return CustomerDetails{}, err
	}
	amount, err := optionalFloat(name, data, "transactionsAmount")
	if err != nil {
		return CustomerDetails{}, err
	}
	purchases, err := optionalFloat(name, data, "campaignPurchasesCount")
	if err != nil {
		return CustomerDetails{}, err
	}
	c := newCustomerDetails(id, cd, updatedAt)
	c.TransactionsCount = int(count)
	c.TransactionsAmount = amount
	c.CampaignPurchasesCount = int(purchases)
	return c, nil
}

func newCustomerDetails(id string, d CustomerData, updatedAt time.Time) CustomerDetails {
	return CustomerDetails{
		CustomerID:        id,
		FirstName:         d.FirstName,
		LastName:          d.LastName,
		Gender:            d.Gender,
		Email:             d.Email,
		Phone:             d.Phone,
		LoyaltyCardNumber: d.LoyaltyCardNumber,
		BirthDate:         d.BirthDate,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         updatedAt,
		Agreement1:        d.Agreement1,
		Agreement2:        d.Agreement2,
		Agreement3:        d.Agreement3,
		Labels:            d.Labels,
	}
}

// apply merges the fields present in u.
func (c *CustomerDetails) apply(u CustomerDataUpdate) {
	for dst, v := range map[*string]*string{
		&c.FirstName:         u.FirstName,
		&c.LastName:          u.LastName,
		&c.Gender:            u.Gender,
		&c.Email:             u.Email,
		&c.Phone:             u.Phone,
		&c.LoyaltyCardNumber: u.LoyaltyCardNumber,
	} {
		if v != nil {
			*dst = *v
		}
	}
	for dst, v := range map[*bool]*bool{&c.Agreement1: u.Agreement1, &c.Agreement2: u.Agreement2, &c.Agreement3: u.Agreement3} {
		if v != nil {
			*dst = *v
		}
	}
	if u.BirthDate != nil {
		bd := *u.BirthDate
		c.BirthDate = &bd
	}
	if u.LabelsChanged {
		c.Labels = u.Labels
	}
}

// AccountDetails holds the points balance of a customer, keyed by customer id.
type AccountDetails struct {
	AccountID       string
	CustomerID      string
	AvailableAmount float64
	EarnedAmount    float64
	SpentAmount     float64
}

func (a AccountDetails) ID() string { return a.CustomerID }

func (a AccountDetails) Serialize() map[string]any {
	return map[string]any{
		"accountId":       a.AccountID,
		"customerId":      a.CustomerID,
		"availableAmount": a.AvailableAmount,
		"earnedAmount":    a.EarnedAmount,
		"spentAmount":     a.SpentAmount,
	}
}

func DeserializeAccountDetails(data map[string]any) (AccountDetails, error) {
	const name = accountDetailsModel
	accountID, err := requireString(name, data, "accountId")
	if err != nil {
		return AccountDetails{}, err
	}
	customerID, err := requireString(name, data, "customerId")
	if err != nil {
		return AccountDetails{}, err
	}
	a := AccountDetails{AccountID: accountID, CustomerID: customerID}
	for key, dst := range map[string]*float64{
		"availableAmount": &a.AvailableAmount,
		"earnedAmount":    &a.EarnedAmount,
		"spentAmount":     &a.SpentAmount,
	} {
		v, err := optionalFloat(name, data, key)
		if err != nil {
			return AccountDetails{}, err
		}
		*dst = v
	}
	return a, nil
}
