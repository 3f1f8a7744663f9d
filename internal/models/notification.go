package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationType enumerates the forum events a user can be notified about.
type NotificationType string

const (
	NotificationTypeNewPost    NotificationType = "new_post"
	NotificationTypeNewComment NotificationType = "new_comment"
	NotificationTypeNewLike    NotificationType = "new_like"
	NotificationTypeSystem     NotificationType = "system"
)

// Notification represents a per-recipient notification record (MongoDB).
// Created only by the fan-out dispatcher; mutated only by the owning
// recipient's read/delete actions.
type Notification struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	RecipientID uint               `json:"recipient_id" bson:"recipient_id"`
	ActorID     *uint              `json:"actor_id,omitempty" bson:"actor_id,omitempty"`
	Type        NotificationType   `json:"type" bson:"type"`
	Title       string             `json:"title" bson:"title"`
	Body        string             `json:"body" bson:"body"`
	Data        Payload            `json:"data" bson:"data"`
	IsRead      bool               `json:"is_read" bson:"is_read"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
}

// Payload is the deep-link payload carried by a notification. Exactly one
// variant is set, matching the notification type; system notifications carry
// none.
type Payload struct {
	NewPost    *NewPostPayload    `json:"new_post,omitempty" bson:"new_post,omitempty"`
	NewComment *NewCommentPayload `json:"new_comment,omitempty" bson:"new_comment,omitempty"`
	NewLike    *NewLikePayload    `json:"new_like,omitempty" bson:"new_like,omitempty"`
}

type NewPostPayload struct {
	PostID string `json:"post_id" bson:"post_id"`
}

type NewCommentPayload struct {
	PostID    string `json:"post_id" bson:"post_id"`
	CommentID string `json:"comment_id" bson:"comment_id"`
}

type NewLikePayload struct {
	PostID string `json:"post_id" bson:"post_id"`
}

// NewPostData builds the payload for a new_post notification.
func NewPostData(postID string) Payload {
	return Payload{NewPost: &NewPostPayload{PostID: postID}}
}

// NewCommentData builds the payload for a new_comment notification.
func NewCommentData(postID, commentID string) Payload {
	return Payload{NewComment: &NewCommentPayload{PostID: postID, CommentID: commentID}}
}

// NewLikeData builds the payload for a new_like notification.
func NewLikeData(postID string) Payload {
	return Payload{NewLike: &NewLikePayload{PostID: postID}}
}

// SystemData builds the empty payload carried by system notifications.
func SystemData() Payload {
	return Payload{}
}

// MarkReadRequest is the body of POST /notifications/mark-read. An empty or
// omitted ids list means "mark all unread as read".
type MarkReadRequest struct {
	IDs []string `json:"ids"`
}

// PushTokenRequest is the body of the push-token register/unregister calls.
type PushTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// UpdateSettingsRequest carries a partial settings update. Absent fields are
// left untouched; each present field is last-write-wins.
type UpdateSettingsRequest struct {
	NewPost    *bool `json:"newPost,omitempty"`
	NewComment *bool `json:"newComment,omitempty"`
	NewLike    *bool `json:"newLike,omitempty"`
}

// AnnounceRequest is the body of POST /notifications/announce.
type AnnounceRequest struct {
	Title string `json:"title" validate:"required,min=1,max=120"`
	Body  string `json:"body" validate:"required,min=1,max=500"`
}
