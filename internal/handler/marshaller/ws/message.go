package wsmarshaller

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Client frame types accepted on the inbound side of the socket.
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FrameTypingStart = "typing_start"
	FrameTypingStop  = "typing_stop"
	FramePing        = "ping"
)

var ErrUnknownFrame = errors.New("unknown frame type")

// ClientFrame is the union of all inbound message shapes. Fields unused by a
// given type stay empty.
type ClientFrame struct {
	Type         string `json:"type"`
	Channel      string `json:"channel,omitempty"`
	TargetUserID string `json:"target_user_id,omitempty"`
}

// ParseClientFrame decodes and validates one inbound frame. Malformed JSON,
// unknown types and missing required fields all come back as errors the
// handler converts into an error frame, never a disconnect.
func ParseClientFrame(data []byte) (*ClientFrame, error) {
	var frame ClientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	switch frame.Type {
	case FrameSubscribe, FrameUnsubscribe:
		if frame.Channel == "" {
			return nil, fmt.Errorf("%s frame requires channel", frame.Type)
		}
	case FrameTypingStart, FrameTypingStop:
		if frame.TargetUserID == "" {
			return nil, fmt.Errorf("%s frame requires target_user_id", frame.Type)
		}
	case FramePing:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrame, frame.Type)
	}
	return &frame, nil
}
