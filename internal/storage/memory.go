package storage

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"bloodlink/backend/internal/apperr"
	"bloodlink/backend/internal/models"
)

// MemoryStore is a process-local Storage. It backs tests and single-instance
// development runs (STORAGE_DRIVER=memory); nothing survives a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	messages []models.Message
	users    map[string]models.User
	donors   map[string]models.Donor
	now      func() time.Time
}

var _ Storage = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[string]models.User),
		donors: make(map[string]models.Donor),
		now:    time.Now,
	}
}

func (s *MemoryStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	if err := validateMessage(msg); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	msg.Prepare(s.now())
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *MemoryStore) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Message{}
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	slices.SortStableFunc(out, func(a, b models.Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) MarkRead(ctx context.Context, conversationID, receiverID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for i := range s.messages {
		m := &s.messages[i]
		if m.ConversationID == conversationID && m.ReceiverID == receiverID && !m.Read {
			m.Read = true
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListConversationHeads(ctx context.Context, userID string, limit int) ([]models.ConversationHead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byConversation := make(map[string]*models.ConversationHead)
	for _, m := range s.messages {
		if m.SenderID != userID && m.ReceiverID != userID {
			continue
		}
		head, ok := byConversation[m.ConversationID]
		if !ok {
			head = &models.ConversationHead{ConversationID: m.ConversationID, LastMessage: m}
			byConversation[m.ConversationID] = head
		} else if !m.CreatedAt.Before(head.LastMessage.CreatedAt) {
			head.LastMessage = m
		}
		if m.ReceiverID == userID && !m.Read {
			head.UnreadCount++
		}
	}

	heads := make([]models.ConversationHead, 0, len(byConversation))
	for _, h := range byConversation {
		heads = append(heads, *h)
	}
	slices.SortFunc(heads, func(a, b models.ConversationHead) int {
		return b.LastMessage.CreatedAt.Compare(a.LastMessage.CreatedAt)
	})
	if limit > 0 && len(heads) > limit {
		heads = heads[:limit]
	}
	return heads, nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email {
			return apperr.InvalidArgument.New("email %q is already registered", user.Email)
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	s.users[user.ID] = *user
	return nil
}

func (s *MemoryStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperr.NotFound.New("user not found")
	}
	return &u, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, apperr.NotFound.New("user not found")
}

func (s *MemoryStore) UpdateUserRoles(ctx context.Context, id string, roles []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return apperr.NotFound.New("user not found")
	}
	u.Roles = pq.StringArray(slices.Clone(roles))
	s.users[id] = u
	return nil
}

func (s *MemoryStore) CreateDonor(ctx context.Context, donor *models.Donor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if donor.ID == "" {
		donor.ID = uuid.New().String()
	}
	donor.CreatedAt, donor.UpdatedAt = now, now
	donor.RecomputeEligibility(now)
	s.donors[donor.ID] = *donor
	return nil
}

func (s *MemoryStore) ListDonors(ctx context.Context, filter models.DonorFilter) ([]models.Donor, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := []models.Donor{}
	for _, d := range s.donors {
		if donorMatches(d, filter) {
			matched = append(matched, d)
		}
	}

	column, desc := donorSort(filter.Sort)
	slices.SortFunc(matched, func(a, b models.Donor) int {
		c := compareDonors(a, b, column)
		if desc {
			return -c
		}
		return c
	})

	total := int64(len(matched))
	start := min(filter.Offset(), len(matched))
	end := len(matched)
	if filter.Limit > 0 {
		end = min(start+filter.Limit, len(matched))
	}
	return matched[start:end], total, nil
}

func donorMatches(d models.Donor, f models.DonorFilter) bool {
	if f.BloodGroup != "" && d.BloodGroup != f.BloodGroup {
		return false
	}
	if f.District != "" && !containsFold(deref(d.District), f.District) {
		return false
	}
	if f.Available != nil && d.Available != *f.Available {
		return false
	}
	if f.Query != "" {
		fields := []string{d.Name, d.Phone, deref(d.Email), deref(d.District)}
		if !slices.ContainsFunc(fields, func(v string) bool { return containsFold(v, f.Query) }) {
			return false
		}
	}
	return true
}

func compareDonors(a, b models.Donor, column string) int {
	switch column {
	case "name":
		return cmp.Compare(a.Name, b.Name)
	case "blood_group":
		return cmp.Compare(a.BloodGroup, b.BloodGroup)
	case "district":
		return cmp.Compare(deref(a.District), deref(b.District))
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *MemoryStore) GetDonor(ctx context.Context, id string) (*models.Donor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.donors[id]
	if !ok {
		return nil, apperr.NotFound.New("donor not found")
	}
	return &d, nil
}

func (s *MemoryStore) SaveDonor(ctx context.Context, donor *models.Donor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.donors[donor.ID]; !ok {
		return apperr.NotFound.New("donor not found")
	}
	now := s.now()
	donor.UpdatedAt = now
	donor.RecomputeEligibility(now)
	s.donors[donor.ID] = *donor
	return nil
}

func (s *MemoryStore) DeleteDonor(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.donors[id]; !ok {
		return apperr.NotFound.New("donor not found")
	}
	delete(s.donors, id)
	return nil
}
