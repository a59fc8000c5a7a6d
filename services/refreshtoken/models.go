package refreshtoken

import (
	"time"

	"github.com/tech-arch1tect/authx/clock"
)

// RefreshToken is one link in a rotation chain. The raw token string is never
// persisted; lookups go through the SHA-256 hash. A record with ReplacedByID
// set has been rotated and is terminal, as is a revoked or expired one.
type RefreshToken struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	SubjectID    uint       `json:"subject_id" gorm:"not null;index"`
	TokenHash    string     `json:"-" gorm:"uniqueIndex;size:64;not null"`
	IssuedAt     time.Time  `json:"issued_at" gorm:"not null"`
	ExpiresAt    time.Time  `json:"expires_at" gorm:"not null;index"`
	Revoked      bool       `json:"revoked" gorm:"not null;default:false;index"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	ReplacedByID *uint      `json:"replaced_by_id,omitempty" gorm:"index"`
	IssuingIP    string     `json:"issuing_ip,omitempty" gorm:"size:64"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

// Usable reports whether the token can still be redeemed: not revoked, not
// rotated, and unexpired at the given instant.
func (t *RefreshToken) Usable(now time.Time) bool {
	return !t.Revoked && t.ReplacedByID == nil && clock.EnsureUTC(now).Before(clock.EnsureUTC(t.ExpiresAt))
}

// normalize forces every stored timestamp back to UTC after a read. Some
// drivers round-trip timestamps in local or offset-less form; comparisons must
// never mix representations.
func (t *RefreshToken) normalize() {
	t.IssuedAt = clock.EnsureUTC(t.IssuedAt)
	t.ExpiresAt = clock.EnsureUTC(t.ExpiresAt)
	if t.RevokedAt != nil {
		utc := clock.EnsureUTC(*t.RevokedAt)
		t.RevokedAt = &utc
	}
}

// CreatedToken pairs a freshly persisted record with the raw token string, the
// only time the raw value is ever visible.
type CreatedToken struct {
	Raw    string
	Record RefreshToken
}
