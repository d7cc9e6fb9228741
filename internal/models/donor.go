package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BloodGroups lists every accepted value of Donor.BloodGroup.
var BloodGroups = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

// DonationInterval is the minimum time between two donations.
const DonationInterval = 3 // months

// Donor is a registry entry. It may be linked to a user account but does not
// have to be: guests can register donors too.
type Donor struct {
	ID               string     `gorm:"type:uuid;primaryKey" json:"_id"`
	UserID           *string    `gorm:"type:text;index" json:"userId"`
	Name             string     `gorm:"type:text;not null" json:"name"`
	Email            *string    `gorm:"type:text" json:"email"`
	Phone            string     `gorm:"type:text;not null" json:"phone"`
	BloodGroup       string     `gorm:"type:text;not null;index" json:"bloodGroup"`
	Age              *int       `json:"age"`
	District         *string    `gorm:"type:text;index" json:"district"`
	Available        bool       `gorm:"not null" json:"available"`
	Verified         bool       `gorm:"not null" json:"verified"`
	Notes            *string    `gorm:"type:text" json:"notes"`
	LastDonationDate *time.Time `json:"lastDonationDate"`
	DonationCount    int        `gorm:"not null" json:"donationCount"`
	NextEligibleDate *time.Time `json:"nextEligibleDate"`
	CreatedAt        time.Time  `gorm:"index" json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// BeforeCreate assigns the donor ID.
func (d *Donor) BeforeCreate(tx *gorm.DB) (err error) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return
}

// BeforeSave keeps the eligibility window in sync with the last donation.
func (d *Donor) BeforeSave(tx *gorm.DB) (err error) {
	d.RecomputeEligibility(time.Now())
	return
}

// RecomputeEligibility derives NextEligibleDate and Available from
// LastDonationDate. A donor without a recorded donation keeps the
// availability that was set explicitly.
func (d *Donor) RecomputeEligibility(now time.Time) {
	if d.LastDonationDate == nil {
		return
	}
	next := d.LastDonationDate.AddDate(0, DonationInterval, 0)
	d.NextEligibleDate = &next
	d.Available = !now.Before(next)
}

// DonorFilter selects and pages donors in a listing.
type DonorFilter struct {
	BloodGroup string
	District   string
	Available  *bool
	Query      string
	Page       int
	Limit      int
	// Sort is a field name, optionally prefixed with '-' for descending.
	Sort string
}

// Offset is the number of rows skipped for the current page.
func (f DonorFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}
