package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/utils/tests"
)

func TestValidateExpoToken(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid token", "ExponentPushToken[xxxxxxxxxxxxxxxxxxxxxx]", false},
		{"valid short token", "ExponentPushToken[a]", false},
		{"missing prefix", "PushToken[xxxxxxxx]", true},
		{"missing suffix", "ExponentPushToken[xxxxxxxx", true},
		{"empty body", "ExponentPushToken[]", true},
		{"empty string", "", true},
		{"raw fcm token", "fcm:APA91bHun4MxP5egoKMwt", true},
		{"suffix only", "]", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateExpoToken(tt.token)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidToken)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// newDryRunDB opens a gorm session that builds SQL without executing it and
// hands each generated statement to capture.
func newDryRunDB(t *testing.T, capture *string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(tests.DummyDialector{}, &gorm.Config{DryRun: true})
	require.NoError(t, err)
	err = db.Callback().Create().After("gorm:create").Register("capture_sql", func(tx *gorm.DB) {
		*capture = tx.Statement.SQL.String()
	})
	require.NoError(t, err)
	return db
}

func TestRegisterTokenGeneratesConflictTolerantInsert(t *testing.T) {
	var insertSQL string
	repo := NewPostgresTokenRepository(newDryRunDB(t, &insertSQL))

	err := repo.RegisterToken(context.Background(), 1, "ExponentPushToken[abc]")
	require.NoError(t, err)

	// Re-registering an already known token must be absorbed by the insert
	// itself rather than surface as a unique-constraint error.
	assert.Contains(t, insertSQL, "INSERT INTO")
	assert.Contains(t, insertSQL, "ON CONFLICT")
	assert.Contains(t, insertSQL, "DO NOTHING")
}

func TestRegisterTokenRejectsBeforeTouchingDatabase(t *testing.T) {
	var insertSQL string
	repo := NewPostgresTokenRepository(newDryRunDB(t, &insertSQL))

	err := repo.RegisterToken(context.Background(), 1, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Empty(t, insertSQL)
}
