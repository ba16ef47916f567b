package simulation

import "time"

// Speaker identifies who sent a turn.
type Speaker string

const (
	SpeakerUser            Speaker = "user"
	SpeakerVirtualCustomer Speaker = "virtual-customer"
)

// Turn is one line of a simulation transcript. Reaction classifies
// virtual-customer turns only.
type Turn struct {
	Speaker  Speaker   `json:"speaker"`
	Text     string    `json:"text"`
	Reaction string    `json:"reaction,omitempty"`
	At       time.Time `json:"at"`
}

// Handoff is the only payload a message session passes to a new
// simulation. PersonaName is optional; without it the name is taken from
// the label's first segment.
type Handoff struct {
	Text         string `json:"text"`
	PersonaLabel string `json:"personaLabel"`
	PersonaName  string `json:"personaName,omitempty"`
}

// Snapshot is a point-in-time view of a simulation.
type Snapshot struct {
	SessionID    string    `json:"sessionId"`
	PersonaLabel string    `json:"personaLabel"`
	Typing       bool      `json:"typing"`
	TypingText   string    `json:"typingText,omitempty"`
	Closed       bool      `json:"closed,omitempty"`
	Turns        []Turn    `json:"turns"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ReplyInput is what a replier sees when the virtual customer answers.
type ReplyInput struct {
	PersonaLabel string
	PersonaName  string
	Transcript   []Turn
	// Opening marks the first reply, to the handed-off message itself.
	Opening bool
}

// LastUserIndex returns the transcript index of the most recent user
// turn, or -1 when there is none.
func (in ReplyInput) LastUserIndex() int {
	for i := len(in.Transcript) - 1; i >= 0; i-- {
		if in.Transcript[i].Speaker == SpeakerUser {
			return i
		}
	}
	return -1
}

// LastUserText returns the text of the most recent user turn.
func (in ReplyInput) LastUserText() string {
	if i := in.LastUserIndex(); i >= 0 {
		return in.Transcript[i].Text
	}
	return ""
}

// CustomerTurns counts the virtual-customer replies already given.
func (in ReplyInput) CustomerTurns() int {
	n := 0
	for _, turn := range in.Transcript {
		if turn.Speaker == SpeakerVirtualCustomer {
			n++
		}
	}
	return n
}
