package envelope

import "errors"

// ErrMalformedPayload is returned by Decode when the envelope body
// cannot be decoded to the requested type.
var ErrMalformedPayload = errors.New("envelope: malformed payload")

// ErrMissingField is returned by validation helpers when a required
// envelope field is absent.
var ErrMissingField = errors.New("envelope: missing required field")
