package store

import (
	"context"

	"github.com/ebeckert/letterwell/internal/model"
)

// CreateLetter inserts a new letter for its owning account.
func (s *Store) CreateLetter(ctx context.Context, l *model.Letter) error {
	if l.Status == "" {
		l.Status = model.StatusDraft
	}
	if l.Tags == "" {
		l.Tags = "[]"
	}
	if l.Metadata == "" {
		l.Metadata = "{}"
	}
	return s.db.WithContext(ctx).Create(l).Error
}

// LettersByUser returns all of an account's letters, most recently updated
// first.
func (s *Store) LettersByUser(ctx context.Context, userID uint) ([]model.Letter, error) {
	var letters []model.Letter
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&letters).Error
	return letters, err
}

// RecentLetters returns the account's most recently updated letters, capped
// at limit.
func (s *Store) RecentLetters(ctx context.Context, userID uint, limit int) ([]model.Letter, error) {
	var letters []model.Letter
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Limit(limit).
		Find(&letters).Error
	return letters, err
}

// CountLetters returns how many letters the account owns.
func (s *Store) CountLetters(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Letter{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

// LetterByID fetches a letter scoped to its owner. A letter owned by another
// account is indistinguishable from a missing one.
func (s *Store) LetterByID(ctx context.Context, userID, id uint) (*model.Letter, error) {
	var l model.Letter
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&l).Error
	if err != nil {
		return nil, translate(err)
	}
	return &l, nil
}

// SaveLetter persists all fields of an existing letter.
func (s *Store) SaveLetter(ctx context.Context, l *model.Letter) error {
	return s.db.WithContext(ctx).Save(l).Error
}

// DeleteLetter removes a letter scoped to its owner. Deleting a letter the
// account does not own reports ErrNotFound.
func (s *Store) DeleteLetter(ctx context.Context, userID, id uint) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.Letter{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
