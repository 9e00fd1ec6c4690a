package calsync

// ImportStats summarizes one reconciliation run.
type ImportStats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	Skipped int `json:"skipped"`

	// TotalExternalEvents counts every fetched event, malformed ones included.
	TotalExternalEvents int `json:"totalExternalEvents"`

	// ExternalOriginCount counts fetched events not linked from an internal
	// booking at fetch time.
	ExternalOriginCount int `json:"externalOriginCount"`

	Connected bool `json:"connected"`

	// Invalid counts events skipped because they could not be mapped to a
	// booking.
	Invalid int `json:"invalid"`
}

// Changed reports whether the run modified the ledger.
func (s ImportStats) Changed() bool {
	return s.Created+s.Updated+s.Deleted > 0
}
