package certificate

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang/snappy"
)

var ErrInvalidEncoding = errors.New("invalid_certificate_encoding")

// Encode packs an Info into the opaque string stored in the upstream
// business custom field: JSON, snappy block compressed, base64.
func Encode(info Info) (string, error) {
	payload, err := json.Marshal(info)
	if err != nil {
		return "", fmt.Errorf("encode certificate: %w", err)
	}
	return base64.StdEncoding.EncodeToString(snappy.Encode(nil, payload)), nil
}

// Decode reverses Encode.
func Decode(encoded string) (Info, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	payload, err := snappy.Decode(nil, raw)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	var info Info
	if err := json.Unmarshal(payload, &info); err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return info, nil
}
