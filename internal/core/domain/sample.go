package domain

import "time"

// Indicator is a tracked metric owned by an identity.
type Indicator struct {
	ID        string    `json:"id" bson:"_id,omitempty"`
	OwnerID   int64     `json:"owner_id" bson:"created_by"`
	Name      string    `json:"name" bson:"name"`
	Unit      string    `json:"unit" bson:"unit"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Record is a single dated value of an indicator.
type Record struct {
	ID          string    `json:"id" bson:"_id,omitempty"`
	IndicatorID string    `json:"indicator_id" bson:"indicator_id"`
	OwnerID     int64     `json:"owner_id" bson:"created_by"`
	Value       float64   `json:"value" bson:"value"`
	Date        time.Time `json:"date" bson:"date"`
}
