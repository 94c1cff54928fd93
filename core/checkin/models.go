package checkin

import (
	"fmt"
	"time"

	"github.com/trezcool/kipimo/core"
)

type CheckIn struct {
	ID          string    `json:"id" db:"id"`
	OrgID       string    `json:"org_id" db:"org_id"`
	KeyResultID string    `json:"key_result_id" db:"key_result_id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Value       float64   `json:"value" db:"value"`
	Confidence  int       `json:"confidence" db:"confidence"`
	Comment     string    `json:"comment" db:"comment"`
	Week        string    `json:"week" db:"week"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// NewCheckIn contains information needed to check in on a key result.
type NewCheckIn struct {
	Value      *float64 `json:"value" validate:"required"`
	Confidence int      `json:"confidence" validate:"required,min=1,max=10"`
	Comment    string   `json:"comment" validate:"max=2000"`
}

func (nc *NewCheckIn) Validate() error {
	nc.Comment = core.CleanString(nc.Comment)
	return core.Validate.Struct(nc)
}

// QueryFilter applies AND operation on its set fields.
type QueryFilter struct {
	KeyResultID string
	UserID      string
	Week        string
}

// ISOWeek returns the "YYYY-Www" ISO week t falls in, in loc.
func ISOWeek(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
