// Package storage persists messages, users and donors. Service is the
// gorm/Postgres implementation; MemoryStore keeps everything in process.
package storage

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"bloodlink/backend/internal/apperr"
	"bloodlink/backend/internal/models"
)

// MessageStore is the append-only message log.
type MessageStore interface {
	// AppendMessage persists msg and fills its store-assigned fields.
	AppendMessage(ctx context.Context, msg *models.Message) error
	// ListByConversation returns every message of the conversation,
	// oldest first.
	ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error)
	// MarkRead flags every unread message of the conversation addressed to
	// receiverID as read and returns how many changed.
	MarkRead(ctx context.Context, conversationID, receiverID string) (int64, error)
	// ListConversationHeads returns, newest first, the last message and the
	// unread count of each conversation userID takes part in.
	ListConversationHeads(ctx context.Context, userID string, limit int) ([]models.ConversationHead, error)
}

// UserStore holds registered accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUserRoles(ctx context.Context, id string, roles []string) error
}

// DonorStore holds the donor registry.
type DonorStore interface {
	CreateDonor(ctx context.Context, donor *models.Donor) error
	ListDonors(ctx context.Context, filter models.DonorFilter) ([]models.Donor, int64, error)
	GetDonor(ctx context.Context, id string) (*models.Donor, error)
	SaveDonor(ctx context.Context, donor *models.Donor) error
	DeleteDonor(ctx context.Context, id string) error
}

// Storage is everything the application persists.
type Storage interface {
	MessageStore
	UserStore
	DonorStore
}

// Service is the gorm-backed Storage.
type Service struct {
	DB *gorm.DB
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// Migrate creates or updates every table the application uses.
func (s *Service) Migrate(ctx context.Context) error {
	err := s.DB.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.Message{},
		&models.Donor{},
	)
	return wrapErr(err, "")
}

// wrapErr classifies a gorm error. what names the record for NotFound.
func wrapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound.New("%s not found", what)
	}
	return apperr.StoreFailure.Wrap(err)
}

// donorSortColumns maps the accepted sort keys to columns.
var donorSortColumns = map[string]string{
	"createdAt":  "created_at",
	"name":       "name",
	"bloodGroup": "blood_group",
	"district":   "district",
}

// donorSort resolves a sort key such as "-createdAt". Unknown keys fall back
// to newest first.
func donorSort(key string) (column string, desc bool) {
	desc = strings.HasPrefix(key, "-")
	column, ok := donorSortColumns[strings.TrimPrefix(key, "-")]
	if !ok {
		return "created_at", true
	}
	return column, desc
}
