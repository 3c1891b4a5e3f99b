package models

// CallEventType is an event reported by the telephony provider for a placed call
type CallEventType string

const (
	CallStarted CallEventType = "started"
	CallFailed  CallEventType = "failed"
	CallEnded   CallEventType = "ended"
)

// CallRequest describes an outbound call that plays an audio asset.
// Message is spoken instead when AudioURL is empty.
type CallRequest struct {
	From     string `json:"from"`
	To       string `json:"to"`
	AudioURL string `json:"audioUrl,omitempty"`
	Message  string `json:"message,omitempty"`
}

// CallEvent is delivered on a call's event channel
type CallEvent struct {
	Type   CallEventType `json:"type"`
	CallID string        `json:"callId,omitempty"`
	Err    error         `json:"-"`
}

// MakeCallRequest is the body of POST /make-call
type MakeCallRequest struct {
	PhoneNumber       string `json:"phoneNumber"`
	GeneratedAudioURL string `json:"generatedAudioUrl,omitempty"`
	Message           string `json:"message,omitempty"`
}

// CallStatusCallback is the form posted by the provider on call progress
type CallStatusCallback struct {
	CallSid    string `form:"CallSid"`
	CallStatus string `form:"CallStatus"`
}
