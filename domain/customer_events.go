package domain

import "time"

const (
	CustomerWasRegisteredType      = "CustomerWasRegistered"
	CustomerDetailsWereUpdatedType = "CustomerDetailsWereUpdated"
)

// CustomerData is the customer snapshot carried by registration events.
type CustomerData struct {
	FirstName         string
	LastName          string
	Gender            string
	Email             string
	Phone             string
	LoyaltyCardNumber string
	BirthDate         *time.Time
	CreatedAt         time.Time
	Agreement1        bool
	Agreement2        bool
	Agreement3        bool
	Labels            []Label
}

func (d CustomerData) Serialize() map[string]any {
	return map[string]any{
		"firstName":         d.FirstName,
		"lastName":          d.LastName,
		"gender":            d.Gender,
		"email":             d.Email,
		"phone":             d.Phone,
		"loyaltyCardNumber": d.LoyaltyCardNumber,
		"birthDate":         unixOrNil(d.BirthDate),
		"createdAt":         d.CreatedAt.Unix(),
		"agreement1":        d.Agreement1,
		"agreement2":        d.Agreement2,
		"agreement3":        d.Agreement3,
		"labels":            serializeLabels(d.Labels),
	}
}

func deserializeCustomerData(event string, data map[string]any) (CustomerData, error) {
	birthDate, err := optionalTime(event, data, "birthDate")
	if err != nil {
		return CustomerData{}, err
	}
	createdAt, err := timeOrNow(event, data, "createdAt")
	if err != nil {
		return CustomerData{}, err
	}
	labels, err := deserializeLabels(event, "customerData.labels", data["labels"])
	if err != nil {
		return CustomerData{}, err
	}
	d := CustomerData{
		FirstName:         optionalString(data, "firstName"),
		LastName:          optionalString(data, "lastName"),
		Gender:            optionalString(data, "gender"),
		Email:             optionalString(data, "email"),
		Phone:             optionalString(data, "phone"),
		LoyaltyCardNumber: optionalString(data, "loyaltyCardNumber"),
		BirthDate:         birthDate,
		CreatedAt:         createdAt,
		Labels:            labels,
	}
	for key, dst := range map[string]*bool{"agreement1": &d.Agreement1, "agreement2": &d.Agreement2, "agreement3": &d.Agreement3} {
		b, ok := optionalBool(data, key)
		if !ok {
			return CustomerData{}, invalidField(event, "customerData."+key, data[key])
		}
		if b != nil {
			*dst = *b
		}
	}
	return d, nil
}

// CustomerWasRegistered opens a customer aggregate.
type CustomerWasRegistered struct {
	CustomerID string
	Data       CustomerData
	UpdatedAt  time.Time
}

// NewCustomerWasRegistered stamps the event with the current time.
func NewCustomerWasRegistered(customerID string, data CustomerData) CustomerWasRegistered {
	return CustomerWasRegistered{CustomerID: customerID, Data: data, UpdatedAt: now()}
}

func (e CustomerWasRegistered) EventType() string   { return CustomerWasRegisteredType }
func (e CustomerWasRegistered) AggregateID() string { return e.CustomerID }

func (e CustomerWasRegistered) Serialize() map[string]any {
	return map[string]any{
		"customerId":   e.CustomerID,
		"customerData": e.Data.Serialize(),
		"updatedAt":    e.UpdatedAt.Unix(),
	}
}

// DeserializeCustomerWasRegistered reads updatedAt from the top level and
// falls back to the customer data, then to the current time.
func DeserializeCustomerWasRegistered(data map[string]any) (CustomerWasRegistered, error) {
	id, err := requireID(CustomerWasRegisteredType, data, "customerId")
	if err != nil {
		return CustomerWasRegistered{}, err
	}
	raw, err := requireMap(CustomerWasRegisteredType, data, "customerData")
	if err != nil {
		return CustomerWasRegistered{}, err
	}
	cd, err := deserializeCustomerData(CustomerWasRegisteredType, raw)
	if err != nil {
		return CustomerWasRegistered{}, err
	}
	updatedAt, err := optionalTime(CustomerWasRegisteredType, data, "updatedAt")
	if err != nil {
		return CustomerWasRegistered{}, err
	}
	if updatedAt == nil {
		if updatedAt, err = optionalTime(CustomerWasRegisteredType, raw, "updatedAt"); err != nil {
			return CustomerWasRegistered{}, err
		}
	}
	ev := NewCustomerWasRegistered(id, cd)
	if updatedAt != nil {
		ev.UpdatedAt = *updatedAt
	}
	return ev, nil
}

// CustomerDataUpdate lists the fields changed by a details update; nil
// fields are left untouched.
type CustomerDataUpdate struct {
	FirstName         *string
	LastName          *string
	Gender            *string
	Email             *string
	Phone             *string
	LoyaltyCardNumber *string
	BirthDate         *time.Time
	Agreement1        *bool
	Agreement2        *bool
	Agreement3        *bool
	Labels            []Label
	LabelsChanged     bool
}

func (u CustomerDataUpdate) Empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Gender == nil && u.Email == nil &&
		u.Phone == nil && u.LoyaltyCardNumber == nil && u.BirthDate == nil &&
		u.Agreement1 == nil && u.Agreement2 == nil && u.Agreement3 == nil && !u.LabelsChanged
}

func (u CustomerDataUpdate) Serialize() map[string]any {
	out := map[string]any{}
	for key, v := range map[string]*string{
		"firstName":         u.FirstName,
		"lastName":          u.LastName,
		"gender":            u.Gender,
		"email":             u.Email,
		"phone":             u.Phone,
		"loyaltyCardNumber": u.LoyaltyCardNumber,
	} {
		if v != nil {
			out[key] = *v
		}
	}
	for key, v := range map[string]*bool{"agreement1": u.Agreement1, "agreement2": u.Agreement2, "agreement3": u.Agreement3} {
		if v != nil {
			out[key] = *v
		}
	}
	if u.BirthDate != nil {
		out["birthDate"] = u.BirthDate.Unix()
	}
	if u.LabelsChanged {
		out["labels"] = serializeLabels(u.Labels)
	}
	return out
}

func deserializeCustomerDataUpdate(event string, data map[string]any) (CustomerDataUpdate, error) {
	var u CustomerDataUpdate
	for key, dst := range map[string]**string{
		"firstName":         &u.FirstName,
		"lastName":          &u.LastName,
		"gender":            &u.Gender,
		"email":             &u.Email,
		"phone":             &u.Phone,
		"loyaltyCardNumber": &u.LoyaltyCardNumber,
	} {
		if _, ok := data[key]; !ok {
			continue
		}
		s := optionalString(data, key)
		*dst = &s
	}
	for key, dst := range map[string]**bool{"agreement1": &u.Agreement1, "agreement2": &u.Agreement2, "agreement3": &u.Agreement3} {
		b, ok := optionalBool(data, key)
		if !ok {
			return CustomerDataUpdate{}, invalidField(event, "customerData."+key, data[key])
		}
		*dst = b
	}
	birthDate, err := optionalTime(event, data, "birthDate")
	if err != nil {
		return CustomerDataUpdate{}, err
	}
	u.BirthDate = birthDate
	if raw, ok := data["labels"]; ok {
		labels, err := deserializeLabels(event, "customerData.labels", raw)
		if err != nil {
			return CustomerDataUpdate{}, err
		}
		u.Labels = labels
		u.LabelsChanged = true
	}
	return u, nil
}

// CustomerDetailsWereUpdated carries a partial customer data change.
type CustomerDetailsWereUpdated struct {
	CustomerID string
	Changes    CustomerDataUpdate
	UpdatedAt  time.Time
}

func (e CustomerDetailsWereUpdated) EventType() string   { return CustomerDetailsWereUpdatedType }
func (e CustomerDetailsWereUpdated) AggregateID() string { return e.CustomerID }

func (e CustomerDetailsWereUpdated) Serialize() map[string]any {
	return map[string]any{
		"customerId":   e.CustomerID,
		"customerData": e.Changes.Serialize(),
		"updatedAt":    e.UpdatedAt.Unix(),
	}
}

func DeserializeCustomerDetailsWereUpdated(data map[string]any) (CustomerDetailsWereUpdated, error) {
	id, err := requireID(CustomerDetailsWereUpdatedType, data, "customerId")
	if err != nil {
		return CustomerDetailsWereUpdated{}, err
	}
	raw, err := requireMap(CustomerDetailsWereUpdatedType, data, "customerData")
	if err != nil {
		return CustomerDetailsWereUpdated{}, err
	}
	changes, err := deserializeCustomerDataUpdate(CustomerDetailsWereUpdatedType, raw)
	if err != nil {
		return CustomerDetailsWereUpdated{}, err
	}
	updatedAt, err := timeOrNow(CustomerDetailsWereUpdatedType, data, "updatedAt")
	if err != nil {
		return CustomerDetailsWereUpdated{}, err
	}
	return CustomerDetailsWereUpdated{CustomerID: id, Changes: changes, UpdatedAt: updatedAt}, nil
}
