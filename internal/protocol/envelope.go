package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownType is returned when decoding an envelope of an unregistered type.
var ErrUnknownType = errors.New("unknown message type")

// Envelope is the wire form of a message: {"type": ..., "message": ...}.
type Envelope struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message"`
}

// Marshal encodes m inside an envelope.
func Marshal(m Message) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", m.Type(), err)
	}
	return json.Marshal(Envelope{Type: m.Type(), Message: body})
}

// Unmarshal decodes an envelope into its concrete message value.
func Unmarshal(data []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}

	switch env.Type {
	case TypeStartSelection:
		return decode[StartSelection](env)
	case TypeSelectedImages:
		return decode[SelectedImages](env)
	case TypeStartScan:
		return StartScan{}, nil
	case TypeGetImageMetadata:
		return decode[GetImageMetadata](env)
	case TypeImageMetadata:
		return decode[ImageMetadata](env)
	case TypeSkippingGIF:
		return decode[SkippingGIF](env)
	case TypeProbeError:
		return decode[ProbeError](env)
	case TypeStartCompress:
		return decode[StartCompress](env)
	case TypeCompressImage:
		return decode[CompressImage](env)
	case TypeSetFill:
		return decode[SetFill](env)
	case TypeCompressedImage:
		return decode[CompressedImage](env)
	case TypeCompressError:
		return decode[CompressError](env)
	case TypeGoToImageFill:
		return decode[GoToImageFill](env)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func decode[T Message](env Envelope) (Message, error) {
	var m T
	if len(env.Message) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(env.Message, &m); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", env.Type, err)
	}
	return m, nil
}
