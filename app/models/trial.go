package models

import "time"

const (
	TrialStatusActive  = "active"
	TrialStatusExpired = "expired"
)

// Trial is the persisted trial window for one email. The status is derived
// from ExpiryTime and never stored.
type Trial struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	Email      string    `gorm:"type:varchar(254);not null;uniqueIndex:ux_trials_email" json:"email"`
	StartTime  time.Time `gorm:"type:datetime(3);not null" json:"start_time"`
	ExpiryTime time.Time `gorm:"type:datetime(3);not null" json:"expiry_time"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"-"`
}

// StatusAt returns active while now is before the expiry time.
func (t *Trial) StatusAt(now time.Time) string {
	if now.Before(t.ExpiryTime) {
		return TrialStatusActive
	}
	return TrialStatusExpired
}
