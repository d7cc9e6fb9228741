// Package donor implements the donor registry use-cases and announces every
// change to connected clients.
package donor

import (
	"context"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bloodlink/backend/internal/apperr"
	"bloodlink/backend/internal/config"
	"bloodlink/backend/internal/models"
)

var phonePattern = regexp.MustCompile(`^[0-9+]{6,16}$`)

const (
	minAge = 0
	maxAge = 150
)

// Store is the persistence the registry needs.
type Store interface {
	CreateDonor(ctx context.Context, donor *models.Donor) error
	ListDonors(ctx context.Context, filter models.DonorFilter) ([]models.Donor, int64, error)
	GetDonor(ctx context.Context, id string) (*models.Donor, error)
	SaveDonor(ctx context.Context, donor *models.Donor) error
	DeleteDonor(ctx context.Context, id string) error
}

// Broadcaster announces registry changes.
type Broadcaster interface {
	Broadcast(ctx context.Context, event string, payload any, rooms ...string) error
}

// Input carries the writable donor fields. Nil fields are left untouched by
// Update and take their defaults in Create.
type Input struct {
	Name             *string    `json:"name"`
	Email            *string    `json:"email"`
	Phone            *string    `json:"phone"`
	BloodGroup       *string    `json:"bloodGroup"`
	Age              *int       `json:"age"`
	District         *string    `json:"district"`
	Available        *bool      `json:"available"`
	Verified         *bool      `json:"verified"`
	Notes            *string    `json:"notes"`
	LastDonationDate *time.Time `json:"lastDonationDate"`
	DonationCount    *int       `json:"donationCount"`
}

// Page is one page of a listing.
type Page struct {
	Donors []models.Donor `json:"donors"`
	Total  int64          `json:"total"`
	Page   int            `json:"page"`
	Limit  int            `json:"limit"`
}

type Service struct {
	Store Store
	Hub   Broadcaster
	Log   *zap.Logger
}

func NewService(store Store, hub Broadcaster, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{Store: store, Hub: hub, Log: log}
}

// Create registers a donor, optionally linked to userID, and announces it.
func (s *Service) Create(ctx context.Context, userID string, in Input) (*models.Donor, error) {
	if blank(in.Name) || blank(in.Phone) || blank(in.BloodGroup) {
		return nil, apperr.InvalidArgument.New("name, phone and bloodGroup required")
	}

	d := &models.Donor{Available: true}
	if userID != "" {
		d.UserID = &userID
	}
	if err := apply(d, in); err != nil {
		return nil, err
	}

	if err := s.Store.CreateDonor(ctx, d); err != nil {
		return nil, err
	}
	s.announce(ctx, models.EventNewDonor, d)
	return d, nil
}

// List returns one page of donors. Out of range paging values are clamped.
func (s *Service) List(ctx context.Context, filter models.DonorFilter) (*Page, error) {
	filter = normalize(filter)
	donors, total, err := s.Store.ListDonors(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &Page{Donors: donors, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Donor, error) {
	if uuid.Validate(id) != nil {
		return nil, apperr.NotFound.New("donor not found")
	}
	return s.Store.GetDonor(ctx, id)
}

// Update applies the non-nil fields of in and announces the result.
func (s *Service) Update(ctx context.Context, id string, in Input) (*models.Donor, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(d, in); err != nil {
		return nil, err
	}
	if err := s.Store.SaveDonor(ctx, d); err != nil {
		return nil, err
	}
	s.announce(ctx, models.EventUpdateDonor, d)
	return d, nil
}

// ToggleAvailability flips Available. A donor with a recorded donation has
// its availability derived from the eligibility window when saved, so the
// flip only sticks for donors without one.
func (s *Service) ToggleAvailability(ctx context.Context, id string) (*models.Donor, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Available = !d.Available
	if err := s.Store.SaveDonor(ctx, d); err != nil {
		return nil, err
	}
	s.announce(ctx, models.EventUpdateDonor, d)
	return d, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return apperr.NotFound.New("donor not found")
	}
	if err := s.Store.DeleteDonor(ctx, id); err != nil {
		return err
	}
	s.announce(ctx, models.EventRemoveDonor, models.RemoveDonorPayload{ID: id})
	return nil
}

// announce tells every connection about a change that is already stored. A
// failure only loses the live update.
func (s *Service) announce(ctx context.Context, event string, payload any) {
	if s.Hub == nil {
		return
	}
	if err := s.Hub.Broadcast(ctx, event, payload, models.RoomAll); err != nil {
		s.Log.Warn("donor broadcast failed", zap.String("event", event), zap.Error(err))
	}
}

func apply(d *models.Donor, in Input) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return apperr.InvalidArgument.New("name must not be empty")
		}
		d.Name = name
	}
	if in.Phone != nil {
		phone := strings.TrimSpace(*in.Phone)
		if !phonePattern.MatchString(phone) {
			return apperr.InvalidArgument.New("phone must be 6 to 16 digits or '+'")
		}
		d.Phone = phone
	}
	if in.BloodGroup != nil {
		group := strings.ToUpper(strings.TrimSpace(*in.BloodGroup))
		if !slices.Contains(models.BloodGroups, group) {
			return apperr.InvalidArgument.New("unknown blood group %q", *in.BloodGroup)
		}
		d.BloodGroup = group
	}
	if in.Age != nil {
		if *in.Age < minAge || *in.Age > maxAge {
			return apperr.InvalidArgument.New("age must be between %d and %d", minAge, maxAge)
		}
		d.Age = in.Age
	}
	if in.DonationCount != nil {
		if *in.DonationCount < 0 {
			return apperr.InvalidArgument.New("donationCount must not be negative")
		}
		d.DonationCount = *in.DonationCount
	}
	if in.Email != nil {
		d.Email = optional(strings.ToLower(*in.Email))
	}
	if in.District != nil {
		d.District = optional(*in.District)
	}
	if in.Notes != nil {
		d.Notes = optional(*in.Notes)
	}
	if in.Available != nil {
		d.Available = *in.Available
	}
	if in.Verified != nil {
		d.Verified = *in.Verified
	}
	if in.LastDonationDate != nil {
		last := *in.LastDonationDate
		d.LastDonationDate = &last
	}
	return nil
}

func normalize(f models.DonorFilter) models.DonorFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	switch {
	case f.Limit < 1:
		f.Limit = config.DefaultPageLimit
	case f.Limit > config.MaxPageLimit:
		f.Limit = config.MaxPageLimit
	}
	if f.Sort == "" {
		f.Sort = "-createdAt"
	}
	if f.BloodGroup != "" {
		f.BloodGroup = strings.ToUpper(strings.TrimSpace(f.BloodGroup))
	}
	f.District = strings.TrimSpace(f.District)
	f.Query = strings.TrimSpace(f.Query)
	return f
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

// optional maps an empty string to NULL.
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
