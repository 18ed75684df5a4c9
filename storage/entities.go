package storage

// Entity represents base table entity keys.
type Entity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

const (
	EdmBoolean = "Edm.Boolean"
	EdmInt64   = "Edm.Int64"
)

// RowEntity stores one serialized read model. CustomerId and Used are
// projected into their own columns so partitions can be filtered without
// decoding the payload.
type RowEntity struct {
	Entity
	Payload       string `json:"Payload"`
	CustomerID    string `json:"CustomerId,omitempty"`
	Used          *bool  `json:"Used,omitempty"`
	UsedType      string `json:"Used@odata.type,omitempty"`
	UpdatedAt     int64  `json:"UpdatedAt,string"`
	UpdatedAtType string `json:"UpdatedAt@odata.type"`
}

// CampaignEntity is a campaign catalog entry.
type CampaignEntity struct {
	Entity
	Payload string `json:"Payload"`
}
