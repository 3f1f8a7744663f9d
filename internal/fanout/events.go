package fanout

import (
	"fmt"

	"github.com/fruitsense/backend/internal/models"
	"github.com/fruitsense/backend/internal/repositories"
)

// Typed event constructors. These are the integration surface for the forum
// subsystem: it builds the event after its own write has committed and hands
// it to DispatchDetached.

// NewPostEvent notifies all active accounts about a new forum post.
func NewPostEvent(actorID uint, actorName, postID, postTitle string) Event {
	return Event{
		ActorID:    actorID,
		Type:       models.NotificationTypeNewPost,
		Audience:   BroadcastAudience(),
		Title:      "New post in the community",
		Body:       fmt.Sprintf("%s shared: %s", actorName, postTitle),
		Payload:    models.NewPostData(postID),
		SettingKey: repositories.SettingNewPost,
	}
}

// NewCommentEvent notifies the post's author about a new comment.
func NewCommentEvent(actorID uint, actorName string, postAuthorID uint, postID, commentID string) Event {
	return Event{
		ActorID:    actorID,
		Type:       models.NotificationTypeNewComment,
		Audience:   UserAudience(postAuthorID),
		Title:      "New comment on your post",
		Body:       fmt.Sprintf("%s commented on your post", actorName),
		Payload:    models.NewCommentData(postID, commentID),
		SettingKey: repositories.SettingNewComment,
	}
}

// NewLikeEvent notifies the post's author about a new like.
func NewLikeEvent(actorID uint, actorName string, postAuthorID uint, postID string) Event {
	return Event{
		ActorID:    actorID,
		Type:       models.NotificationTypeNewLike,
		Audience:   UserAudience(postAuthorID),
		Title:      "Someone liked your post",
		Body:       fmt.Sprintf("%s liked your post", actorName),
		Payload:    models.NewLikeData(postID),
		SettingKey: repositories.SettingNewLike,
	}
}

// SystemEvent broadcasts an announcement to all active accounts. System
// notifications reuse the new_post settings flag so users who opted out of
// community activity still control announcement pushes with a single switch.
func SystemEvent(actorID uint, title, body string) Event {
	return Event{
		ActorID:    actorID,
		Type:       models.NotificationTypeSystem,
		Audience:   BroadcastAudience(),
		Title:      title,
		Body:       body,
		Payload:    models.SystemData(),
		SettingKey: repositories.SettingNewPost,
	}
}
