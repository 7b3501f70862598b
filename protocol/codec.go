package protocol

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// EncodeResponse marshals a structured frame for the wire.
func EncodeResponse(r Response) ([]byte, error) {
	b, err := sonic.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %s frame: %w", r.Type, err)
	}
	return b, nil
}

// DecodeControl parses an inbound control frame. A malformed frame is an
// error for the caller to log and ignore; the connection stays open.
func DecodeControl(data []byte) (ControlFrame, error) {
	var c ControlFrame
	if err := sonic.Unmarshal(data, &c); err != nil {
		return ControlFrame{}, fmt.Errorf("protocol: malformed control frame: %w", err)
	}
	return c, nil
}
