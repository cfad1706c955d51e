package model

import (
	"encoding/json"
	"time"
)

// User represents an account. Accounts are created either by password
// registration or by first Google sign-in; a row always has a password hash
// or a Google ID, never neither.
type User struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	Email        string  `gorm:"uniqueIndex;not null" json:"email"`
	Name         string  `gorm:"not null" json:"name"`
	PasswordHash *string `gorm:"type:text" json:"-"`
	GoogleID     *string `gorm:"uniqueIndex" json:"-"`

	// Google OAuth tokens, stored encrypted at rest. TEXT because tokens
	// regularly exceed varchar defaults.
	GoogleAccessToken  string     `gorm:"type:text" json:"-"`
	GoogleRefreshToken string     `gorm:"type:text" json:"-"`
	GoogleTokenExpiry  *time.Time `json:"-"`

	LastLogin *time.Time `json:"-"`
	IsActive  bool       `gorm:"default:true" json:"-"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// HasPassword reports whether the account can authenticate with a password.
// Google-only accounts have no hash.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// PublicUser is the account shape returned by the API. The password hash and
// OAuth tokens never appear in responses.
type PublicUser struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Public returns the API-safe view of the user.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Email: u.Email, Name: u.Name}
}

// Letter statuses.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Letter is a rich-text document owned by exactly one user.
type Letter struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	UserID  uint   `gorm:"index;not null" json:"userId"`
	Title   string `gorm:"not null" json:"title"`
	Content string `gorm:"type:text;not null" json:"content"`
	Status  string `gorm:"index;default:draft" json:"status"`

	// Tags and Metadata are JSON-encoded TEXT columns, matching the free-form
	// shapes the editor sends.
	Tags     string `gorm:"type:text;default:'[]'" json:"-"`
	Metadata string `gorm:"type:text;default:'{}'" json:"-"`

	// DriveFileID caches the Google Drive document this letter was last
	// exported to, when any.
	DriveFileID string `json:"driveFileId,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TagList decodes the tags column. A malformed or empty column yields an
// empty list rather than an error.
func (l *Letter) TagList() []string {
	if l.Tags == "" {
		return []string{}
	}
	var tags []string
	if err := json.Unmarshal([]byte(l.Tags), &tags); err != nil {
		return []string{}
	}
	return tags
}

// SetTagList encodes tags into the column.
func (l *Letter) SetTagList(tags []string) {
	if tags == nil {
		tags = []string{}
	}
	raw, _ := json.Marshal(tags)
	l.Tags = string(raw)
}

// MetadataMap decodes the metadata column.
func (l *Letter) MetadataMap() map[string]any {
	if l.Metadata == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(l.Metadata), &m); err != nil {
		return map[string]any{}
	}
	return m
}

// SetMetadataMap encodes metadata into the column.
func (l *Letter) SetMetadataMap(m map[string]any) {
	if m == nil {
		m = map[string]any{}
	}
	raw, _ := json.Marshal(m)
	l.Metadata = string(raw)
}

// MarshalJSON renders tags and metadata as their decoded shapes.
func (l Letter) MarshalJSON() ([]byte, error) {
	type alias Letter
	return json.Marshal(struct {
		alias
		Tags     []string       `json:"tags"`
		Metadata map[string]any `json:"metadata"`
	}{
		alias:    alias(l),
		Tags:     l.TagList(),
		Metadata: l.MetadataMap(),
	})
}
