package conversation

import (
	"github.com/spec-kit/maintenance-desk/internal/events"
	"github.com/spec-kit/maintenance-desk/internal/session"
)

// InputKind classifies what the actor sent.
type InputKind string

const (
	InputText     InputKind = "text"
	InputCallback InputKind = "callback"
	InputPhoto    InputKind = "photo"
)

// Input is one inbound actor action as seen by a form step. For callbacks
// Text holds the callback data.
type Input struct {
	Kind    InputKind
	Text    string
	PhotoID string
}

// Option is an inline choice attached to a reply.
type Option struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// Reply is one outbound message to the acting user.
type Reply struct {
	Text    string   `json:"text"`
	PhotoID string   `json:"photo_id,omitempty"`
	Options []Option `json:"options,omitempty"`
	Menu    []string `json:"menu,omitempty"`
}

// Result is the outcome of starting or advancing a form. Session is nil once
// the form has finished, been cancelled, or never started; otherwise it is
// the state to store for the actor. Events must be published after the
// result is persisted.
type Result struct {
	Session *session.Session
	Replies []Reply
	Events  []events.Event
}
