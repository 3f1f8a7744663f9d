package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fruitsense/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInvalidToken is returned when a push token does not carry the expected
// Expo namespace.
var ErrInvalidToken = errors.New("invalid push token format")

const (
	expoTokenPrefix = "ExponentPushToken["
	expoTokenSuffix = "]"
)

// SettingKey names a per-category notification settings flag on the account.
type SettingKey string

const (
	SettingNewPost    SettingKey = "new_post"
	SettingNewComment SettingKey = "new_comment"
	SettingNewLike    SettingKey = "new_like"
)

// settingColumns maps a SettingKey onto its users column. Keys outside this
// map never reach SQL.
var settingColumns = map[SettingKey]string{
	SettingNewPost:    "notify_new_post",
	SettingNewComment: "notify_new_comment",
	SettingNewLike:    "notify_new_like",
}

// ValidateExpoToken checks that the token is in the Expo push namespace with
// a non-empty body.
func ValidateExpoToken(token string) error {
	if !strings.HasPrefix(token, expoTokenPrefix) || !strings.HasSuffix(token, expoTokenSuffix) {
		return ErrInvalidToken
	}
	if len(token) <= len(expoTokenPrefix)+len(expoTokenSuffix) {
		return ErrInvalidToken
	}
	return nil
}

// TokenRepository defines the interface for the device token registry
type TokenRepository interface {
	RegisterToken(ctx context.Context, userID uint, token string) error
	UnregisterToken(ctx context.Context, userID uint, token string) error
	UpdateSettings(ctx context.Context, userID uint, partial *models.UpdateSettingsRequest) error
	EligibleTokens(ctx context.Context, recipientIDs []uint, key SettingKey) ([]models.PushToken, error)
}

// PostgresTokenRepository implements TokenRepository for PostgreSQL
type PostgresTokenRepository struct {
	db *gorm.DB
}

// NewPostgresTokenRepository creates a new PostgresTokenRepository
func NewPostgresTokenRepository(db *gorm.DB) *PostgresTokenRepository {
	return &PostgresTokenRepository{db: db}
}

// RegisterToken adds a push token to the user's token set. Registration is
// idempotent: adding a token that is already present is a no-op. Safe under
// concurrent registrations from multiple devices of the same account.
func (r *PostgresTokenRepository) RegisterToken(ctx context.Context, userID uint, token string) error {
	if err := ValidateExpoToken(token); err != nil {
		return err
	}

	pushToken := &models.PushToken{UserID: userID, Token: token}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(pushToken).Error
}

// UnregisterToken removes a token if present, no-op otherwise
func (r *PostgresTokenRepository) UnregisterToken(ctx context.Context, userID uint, token string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND token = ?", userID, token).
		Delete(&models.PushToken{}).Error
}

// UpdateSettings merges the present boolean flags into the user's settings,
// last write wins independently per field
func (r *PostgresTokenRepository) UpdateSettings(ctx context.Context, userID uint, partial *models.UpdateSettingsRequest) error {
	updates := map[string]interface{}{}
	if partial.NewPost != nil {
		updates["notify_new_post"] = *partial.NewPost
	}
	if partial.NewComment != nil {
		updates["notify_new_comment"] = *partial.NewComment
	}
	if partial.NewLike != nil {
		updates["notify_new_like"] = *partial.NewLike
	}
	if len(updates) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(updates).Error
}

// EligibleTokens returns every push token of the given recipients whose
// account is active and has the matching settings flag enabled
func (r *PostgresTokenRepository) EligibleTokens(ctx context.Context, recipientIDs []uint, key SettingKey) ([]models.PushToken, error) {
	if len(recipientIDs) == 0 {
		return nil, nil
	}

	column, ok := settingColumns[key]
	if !ok {
		return nil, fmt.Errorf("unknown setting key: %s", key)
	}

	var tokens []models.PushToken
	err := r.db.WithContext(ctx).
		Model(&models.PushToken{}).
		Joins("JOIN users ON users.id = push_tokens.user_id").
		Where("push_tokens.user_id IN ?", recipientIDs).
		Where("users.is_active = ?", true).
		Where(column+" = ?", true).
		Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}
