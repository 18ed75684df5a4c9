package domain

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
)

// Entity types carried on the envelope. Events of one aggregate are
// delivered in append order; nothing is assumed across aggregates.
const (
	EntityCustomer    = "customer"
	EntityTransaction = "transaction"
	EntityAccount     = "account"
)

// Event is the envelope read from the domain events queue.
type Event struct {
	ID         string          `json:"Id"`
	EntityID   string          `json:"EntityId"`
	EntityType string          `json:"EntityType"`
	Type       string          `json:"Type"`
	Data       json.RawMessage `json:"Data"`
	Timestamp  int64           `json:"Time"`
}

// Payload is a typed domain event.
type Payload interface {
	EventType() string
	AggregateID() string
	Serialize() map[string]any
}

type payloadDecoder func(map[string]any) (Payload, error)

func decoderFor[T Payload](fn func(map[string]any) (T, error)) payloadDecoder {
	return func(data map[string]any) (Payload, error) {
		p, err := fn(data)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

var decoders = map[string]payloadDecoder{
	CustomerWasRegisteredType:            decoderFor(DeserializeCustomerWasRegistered),
	CustomerDetailsWereUpdatedType:       decoderFor(DeserializeCustomerDetailsWereUpdated),
	CampaignWasBoughtByCustomerType:      decoderFor(DeserializeCampaignWasBoughtByCustomer),
	CampaignUsageWasChangedType:          decoderFor(DeserializeCampaignUsageWasChanged),
	CampaignStatusWasChangedType:         decoderFor(DeserializeCampaignStatusWasChanged),
	TransactionWasRegisteredType:         decoderFor(DeserializeTransactionWasRegistered),
	CustomerWasAssignedToTransactionType: decoderFor(DeserializeCustomerWasAssignedToTransaction),
	LabelsWereAppendedToTransactionType:  decoderFor(DeserializeLabelsWereAppendedToTransaction),
	AccountWasCreatedType:                decoderFor(DeserializeAccountWasCreated),
	PointsWereAddedType:                  decoderFor(DeserializePointsWereAdded),
	PointsWereSpentType:                  decoderFor(DeserializePointsWereSpent),
}

// DeserializePayload builds the typed event registered for the given tag.
func DeserializePayload(eventType string, data map[string]any) (Payload, error) {
	dec, ok := decoders[eventType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}
	return dec(data)
}

// Decode parses the envelope data into its typed payload.
func (ev Event) Decode() (Payload, error) {
	if _, ok := decoders[ev.Type]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, ev.Type)
	}
	var data map[string]any
	if len(ev.Data) == 0 {
		return nil, &MalformedEventError{Event: ev.Type, Field: "Data", Reason: "is empty"}
	}
	if err := sonic.ConfigStd.Unmarshal(ev.Data, &data); err != nil {
		return nil, &MalformedEventError{Event: ev.Type, Field: "Data", Reason: err.Error()}
	}
	if data == nil {
		return nil, &MalformedEventError{Event: ev.Type, Field: "Data", Reason: "is null"}
	}
	return DeserializePayload(ev.Type, data)
}

// NewEvent wraps a payload in an envelope ready to be queued.
func NewEvent(id, entityType string, p Payload, ts int64) (Event, error) {
	data, err := sonic.ConfigStd.Marshal(p.Serialize())
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:         id,
		EntityID:   p.AggregateID(),
		EntityType: entityType,
		Type:       p.EventType(),
		Data:       data,
		Timestamp:  ts,
	}, nil
}
