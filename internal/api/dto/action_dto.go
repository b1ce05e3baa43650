package dto

import "github.com/spec-kit/maintenance-desk/internal/conversation"

// ActionRequest is one inbound chat message or button press.
type ActionRequest struct {
	ActorID  int64  `json:"actor_id"`
	Handle   string `json:"handle"`
	Name     string `json:"name"`
	Text     string `json:"text"`
	Callback string `json:"callback"`
	PhotoID  string `json:"photo_id"`
}

// ActionResponse carries what to show the acting user.
type ActionResponse struct {
	Role    string               `json:"role"`
	Replies []conversation.Reply `json:"replies"`
}
