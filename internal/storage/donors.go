package storage

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"bloodlink/backend/internal/models"
)

var gormNotFound = gorm.ErrRecordNotFound

// CreateDonor inserts a donor; BeforeSave derives the eligibility fields.
func (s *Service) CreateDonor(ctx context.Context, donor *models.Donor) error {
	return wrapErr(s.DB.WithContext(ctx).Create(donor).Error, "donor")
}

// ListDonors returns one page of donors matching filter and the total number
// of matches.
func (s *Service) ListDonors(ctx context.Context, filter models.DonorFilter) ([]models.Donor, int64, error) {
	var total int64
	if err := applyDonorFilter(s.DB.WithContext(ctx), filter).Count(&total).Error; err != nil {
		return nil, 0, wrapErr(err, "donor")
	}

	column, desc := donorSort(filter.Sort)
	order := column + " asc"
	if desc {
		order = column + " desc"
	}

	donors := []models.Donor{}
	err := applyDonorFilter(s.DB.WithContext(ctx), filter).
		Order(order).
		Offset(filter.Offset()).
		Limit(filter.Limit).
		Find(&donors).Error
	if err != nil {
		return nil, 0, wrapErr(err, "donor")
	}
	return donors, total, nil
}

func applyDonorFilter(db *gorm.DB, filter models.DonorFilter) *gorm.DB {
	q := db.Model(&models.Donor{})
	if filter.BloodGroup != "" {
		q = q.Where("blood_group = ?", filter.BloodGroup)
	}
	if filter.District != "" {
		q = q.Where("district ILIKE ?", likePattern(filter.District))
	}
	if filter.Available != nil {
		q = q.Where("available = ?", *filter.Available)
	}
	if filter.Query != "" {
		like := likePattern(filter.Query)
		q = q.Where("name ILIKE ? OR phone ILIKE ? OR email ILIKE ? OR district ILIKE ?", like, like, like, like)
	}
	return q
}

// likePattern matches term anywhere, with LIKE wildcards in term escaped.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return fmt.Sprintf("%%%s%%", r.Replace(term))
}

func (s *Service) GetDonor(ctx context.Context, id string) (*models.Donor, error) {
	var donor models.Donor
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&donor).Error; err != nil {
		return nil, wrapErr(err, "donor")
	}
	return &donor, nil
}

// SaveDonor writes every column of an existing donor.
func (s *Service) SaveDonor(ctx context.Context, donor *models.Donor) error {
	return wrapErr(s.DB.WithContext(ctx).Save(donor).Error, "donor")
}

func (s *Service) DeleteDonor(ctx context.Context, id string) error {
	result := s.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Donor{})
	if result.Error != nil {
		return wrapErr(result.Error, "donor")
	}
	if result.RowsAffected == 0 {
		return wrapErr(gormNotFound, "donor")
	}
	return nil
}
