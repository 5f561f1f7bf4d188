package domain

import "time"

// UnitSealed announces that one output unit of a granule is complete and can
// be ingested.
type UnitSealed struct {
	DatasetID string    `json:"dataset_id"`
	Granule   string    `json:"granule"`
	Unit      string    `json:"unit"`
	Index     int       `json:"index"`
	Points    int       `json:"points"`
	Variables []string  `json:"variables"`
	Overshoot bool      `json:"overshoot"`
	SealedAt  time.Time `json:"sealed_at"`
}
