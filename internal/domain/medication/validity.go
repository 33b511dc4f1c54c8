package medication

import (
	"time"

	"github.com/ehr/portal/pkg/badge"
	"github.com/ehr/portal/pkg/dates"
)

type Validity string

const (
	ValidityExpired     Validity = "Expired"
	ValidityExpiresSoon Validity = "Expires Soon"
	ValidityValid       Validity = "Valid"
)

const (
	// expiringWindowDays is how close to its end a prescription counts as expiring.
	expiringWindowDays = 7
	// UrgentExpiryDays marks an expiring prescription as an urgent task.
	UrgentExpiryDays = 2
)

type ValidityBadge struct {
	badge.Badge
	Validity Validity `json:"validity"`
	DaysLeft int      `json:"days_left"`
}

// ClassifyValidity compares validUntil with today in loc. A nil date has no
// badge. The end date itself is still valid.
func ClassifyValidity(validUntil *time.Time, now time.Time, loc *time.Location) *ValidityBadge {
	if validUntil == nil {
		return nil
	}
	days := dates.DaysUntil(*validUntil, now, loc)
	var v Validity
	var tone badge.Tone
	switch {
	case days < 0:
		v, tone = ValidityExpired, badge.ToneDestructive
	case days <= expiringWindowDays:
		v, tone = ValidityExpiresSoon, badge.ToneSecondary
	default:
		v, tone = ValidityValid, badge.ToneDefault
	}
	return &ValidityBadge{
		Badge:    badge.Badge{Label: string(v), Tone: tone},
		Validity: v,
		DaysLeft: days,
	}
}
