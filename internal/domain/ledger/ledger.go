package ledger

import (
	"time"

	"github.com/saarzint/AI-Agents-Geoferry/internal/domain/user"
)

// ProviderSystem marks grants and compensating entries written by the service itself.
const ProviderSystem = "system"

// TokenLedger holds the running balance for one user.
// Balance == InitialGrant - sum(UsageEntry.TokensUsed); it only moves together with a UsageEntry insert.
type TokenLedger struct {
	ID            uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	UserProfileID uint              `gorm:"column:user_profile_id;not null;uniqueIndex" json:"user_profile_id"`
	UserProfile   *user.UserProfile `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserProfileID;references:ID" json:"-"`
	InitialGrant  int64             `gorm:"column:initial_grant;not null" json:"initial_grant"`
	Balance       int64             `gorm:"column:balance;not null" json:"balance"`
	CreatedAt     time.Time         `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (TokenLedger) TableName() string { return "token_ledger" }

// UsageEntry is append-only. Negative TokensUsed is a credit (grant or refund).
type UsageEntry struct {
	ID            uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	UserProfileID uint              `gorm:"column:user_profile_id;not null;index:idx_usage_user_time,priority:1" json:"user_profile_id"`
	UserProfile   *user.UserProfile `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserProfileID;references:ID" json:"-"`
	Endpoint      string            `gorm:"column:endpoint;not null" json:"endpoint"`
	Provider      string            `gorm:"column:provider;not null" json:"provider"`
	TokensUsed    int64             `gorm:"column:tokens_used;not null" json:"tokens_used"`
	Timestamp     time.Time         `gorm:"column:timestamp;not null;index:idx_usage_user_time,priority:2" json:"timestamp"`
}

func (UsageEntry) TableName() string { return "user_token_usage" }
