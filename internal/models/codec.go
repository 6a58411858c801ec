package models

import (
	"encoding/json"
	"math"
	"time"
)

type friendRequestWire struct {
	ID         string              `json:"id"`
	FromUserID string              `json:"fromUserId"`
	ToUserID   string              `json:"toUserId"`
	Status     FriendRequestStatus `json:"status"`
	CreatedAt  float64             `json:"createdAt"`
}

// MarshalJSON encodes createdAt as seconds since the Unix epoch, the format the
// remote directory stores.
func (r FriendRequest) MarshalJSON() ([]byte, error) {
	wire := friendRequestWire{
		ID:         r.ID,
		FromUserID: r.FromUserID,
		ToUserID:   r.ToUserID,
		Status:     r.Status,
	}
	if !r.CreatedAt.IsZero() {
		wire.CreatedAt = float64(r.CreatedAt.Unix()) + float64(r.CreatedAt.Nanosecond())/float64(time.Second)
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes the epoch-seconds wire format.
func (r *FriendRequest) UnmarshalJSON(data []byte) error {
	var wire friendRequestWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*r = FriendRequest{
		ID:         wire.ID,
		FromUserID: wire.FromUserID,
		ToUserID:   wire.ToUserID,
		Status:     wire.Status,
	}
	if wire.CreatedAt > 0 {
		secs, frac := math.Modf(wire.CreatedAt)
		r.CreatedAt = time.Unix(int64(secs), int64(frac*float64(time.Second))).UTC()
	}
	return nil
}
