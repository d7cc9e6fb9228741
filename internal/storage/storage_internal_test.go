package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"bloodlink/backend/internal/apperr"
)

func TestDonorSort(t *testing.T) {
	tests := []struct {
		key    string
		column string
		desc   bool
	}{
		{"", "created_at", true},
		{"-createdAt", "created_at", true},
		{"createdAt", "created_at", false},
		{"name", "name", false},
		{"-bloodGroup", "blood_group", true},
		{"password; DROP TABLE donors", "created_at", true},
	}
	for _, tt := range tests {
		column, desc := donorSort(tt.key)
		assert.Equal(t, tt.column, column, tt.key)
		assert.Equal(t, tt.desc, desc, tt.key)
	}
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "%colombo%", likePattern("colombo"))
	assert.Equal(t, `%100\%\_x%`, likePattern("100%_x"))
}

func TestWrapErr(t *testing.T) {
	assert.NoError(t, wrapErr(nil, "donor"))
	assert.True(t, apperr.NotFound.Has(wrapErr(gorm.ErrRecordNotFound, "donor")))
	assert.True(t, apperr.StoreFailure.Has(wrapErr(errors.New("conn reset"), "donor")))
}
