// README: Driver application model — the approval gate for becoming a driver.
package driver

import (
	"time"

	"rewear/internal/types"
)

type ApplicationStatus string

const (
	StatusPending     ApplicationStatus = "pending"
	StatusUnderReview ApplicationStatus = "under_review"
	StatusApproved    ApplicationStatus = "approved"
	StatusRejected    ApplicationStatus = "rejected"
)

type Application struct {
	ID         types.ID
	UserID     types.ID
	Status     ApplicationStatus
	Vehicle    string
	LicenseNo  string
	ReviewedAt *time.Time
	CreatedAt  time.Time
}

func (a *Application) Approved() bool {
	return a.Status == StatusApproved
}
