package models

import (
	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model  `json:"-"`
	ID          uint   `json:"id" gorm:"primaryKey"`
	Name        string `json:"name"`
	Email       string `json:"email" gorm:"uniqueIndex"` // Ensure email is unique across all users
	Password    string `json:"-"`                        // Store hashed password, ignore for JSON serialization
	FirebaseUID string `json:"firebase_uid,omitempty" gorm:"uniqueIndex"` // Link to Firebase User UID
	IsAdmin     bool   `json:"is_admin" gorm:"default:false"`
	IsActive    bool   `json:"is_active" gorm:"default:true;index"`

	// Per-category notification settings. Each field is updated
	// independently, last write wins.
	NotifyNewPost    bool `json:"notify_new_post" gorm:"default:true"`
	NotifyNewComment bool `json:"notify_new_comment" gorm:"default:true"`
	NotifyNewLike    bool `json:"notify_new_like" gorm:"default:true"`
}

// PushToken binds a device installation to a user account. The (user_id,
// token) pair is unique, so re-registering a present token is a no-op.
type PushToken struct {
	ID     uint   `json:"id" gorm:"primaryKey"`
	UserID uint   `json:"user_id" gorm:"uniqueIndex:idx_user_token"`
	Token  string `json:"token" gorm:"uniqueIndex:idx_user_token;size:255"`
}

type CreateLocalUserRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
