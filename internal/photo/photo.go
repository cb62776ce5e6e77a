package photo

import (
	"time"

	"github.com/google/uuid"
)

type Photo struct {
	ID                 uuid.UUID `json:"id" db:"id"`
	UserID             uuid.UUID `json:"userId" db:"user_id"`
	Target             Target    `json:"target"`
	ImageURL           string    `json:"imageUrl" db:"image_url"`
	XPEarned           int       `json:"xpEarned" db:"xp_earned"`
	LikesCount         int       `json:"likesCount" db:"likes_count"`
	VerificationStatus string    `json:"verificationStatus" db:"verification_status"`
	Confidence         float64   `json:"confidence" db:"confidence"`
	MatchedKeyword     string    `json:"matchedKeyword,omitempty" db:"matched_keyword"`
	CreatedAt          time.Time `json:"createdAt" db:"created_at"`
}

// LikeState is the viewer's like status for a photo. Pending covers the
// window between an optimistic toggle and the stored outcome.
type LikeState string

const (
	LikePending  LikeState = "pending"
	LikeLiked    LikeState = "liked"
	LikeNotLiked LikeState = "not_liked"
)

// LikeStateOf maps a confirmed boolean from storage.
func LikeStateOf(liked bool) LikeState {
	if liked {
		return LikeLiked
	}
	return LikeNotLiked
}

type LikeResult struct {
	PhotoID    uuid.UUID `json:"photoId"`
	State      LikeState `json:"state"`
	LikesCount int       `json:"likesCount"`
}
