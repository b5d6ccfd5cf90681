package models

import "time"

// Activity is a logged user action shown on the dashboard feed.
//
// Metadata is an open bag of string keys and string values. Writers own their
// keys; readers must tolerate missing keys.
type Activity struct {
	ID           string            `json:"id"`
	UserID       string            `json:"user_id"`
	Type         string            `json:"activity_type"`
	Description  string            `json:"description"`
	CreatedAt    time.Time         `json:"created_at"`
	PointsEarned *int              `json:"points_earned,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type ActivityFields struct {
	Type         string            `json:"activity_type"`
	Description  string            `json:"description"`
	PointsEarned *int              `json:"points_earned,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

func NewActivity(id, userID string, createdAt time.Time, f ActivityFields) Activity {
	a := Activity{
		ID:          id,
		UserID:      userID,
		Type:        f.Type,
		Description: f.Description,
		CreatedAt:   createdAt,
	}
	if f.PointsEarned != nil {
		p := *f.PointsEarned
		a.PointsEarned = &p
	}
	if f.Metadata != nil {
		a.Metadata = make(map[string]string, len(f.Metadata))
		for k, v := range f.Metadata {
			a.Metadata[k] = v
		}
	}
	return a
}

// Clone returns a copy that shares no mutable state with a.
func (a Activity) Clone() Activity {
	return NewActivity(a.ID, a.UserID, a.CreatedAt, ActivityFields{
		Type:         a.Type,
		Description:  a.Description,
		PointsEarned: a.PointsEarned,
		Metadata:     a.Metadata,
	})
}
