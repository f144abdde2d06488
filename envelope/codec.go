package envelope

import (
	"encoding/json"
	"fmt"
)

// Encode marshals v with encoding/json and returns the body bytes to
// embed in an Envelope alongside the caller-chosen messageType. Field
// names come from v's struct tags as written (the fabric's own payload
// types use snake_case tags); Encode applies no case conversion.
func Encode(v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("envelope: encode payload: %w", err)
	}
	return body, nil
}

// Decode unmarshals an envelope body into a value of type T. It returns
// ErrMalformedPayload (wrapped, so errors.Is still matches) when the
// bytes cannot be decoded to the requested type.
func Decode[T any](body []byte) (T, error) {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return v, nil
}

// DecodePayload is a convenience for handlers that already hold an
// Envelope rather than a raw body.
func DecodePayload[T any](e *Envelope) (T, error) {
	return Decode[T](e.Body)
}
