package domain

import (
	"fmt"
	"time"

	"livegrid/pkg/validation"
)

type RecordID string

// TestResultRecord is one completed self-test outcome. Records are append-only.
type TestResultRecord struct {
	ID          RecordID  `json:"id,omitempty"`
	Success     bool      `json:"success"`
	AvgBitrate  int64     `json:"avgBitrate"`
	SSOID       string    `json:"ssoId"`
	Browser     string    `json:"browser"`
	OS          string    `json:"os"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

const maxResultFieldLength = 512

// Validate checks the bounds accepted at the API boundary.
func (r *TestResultRecord) Validate() error {
	if r.AvgBitrate < 0 {
		return fmt.Errorf("%w: avgBitrate must be >= 0", ErrInvalidResult)
	}
	fields := []struct {
		name, value string
	}{
		{"ssoId", r.SSOID},
		{"browser", r.Browser},
		{"os", r.OS},
		{"description", r.Description},
	}
	for _, f := range fields {
		if err := validation.ValidateStringLength(f.value, 0, maxResultFieldLength, f.name); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidResult, err)
		}
	}
	return nil
}
