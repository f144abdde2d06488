package envelope_test

import (
	"testing"

	"github.com/JailtonJunior94/fabric/envelope"
	"github.com/stretchr/testify/require"
)

// TestNew_RoundtripVisibleFields checks the constructor side of spec.md §8
// Scenario 1: an envelope built with a given message_id/correlation_id/
// source carries those same visible fields. No publish or subscribe is
// involved.
func TestNew_RoundtripVisibleFields(t *testing.T) {
	env := envelope.New("test.event", "publisher", []byte(`{"x":1}`),
		envelope.WithMessageID("m1"),
		envelope.WithCorrelationID("c1"),
	)

	require.Equal(t, "m1", env.MessageID)
	require.Equal(t, "c1", env.CorrelationID)
	require.Equal(t, "publisher", env.Source)
}

// TestEncodeDecode_Roundtrip covers the "Round-trips" testable property:
// encode-then-decode with the same type is identity on the visible fields.
func TestEncodeDecode_Roundtrip(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	want := payload{Name: "widget", Count: 7}
	body, err := envelope.Encode(want)
	require.NoError(t, err)

	got, err := envelope.Decode[payload](body)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestDecodePayload_FromEnvelope(t *testing.T) {
	type payload struct {
		OK bool `json:"ok"`
	}

	body, err := envelope.Encode(payload{OK: true})
	require.NoError(t, err)

	env := envelope.New("test.event", "publisher", body)
	got, err := envelope.DecodePayload[payload](env)
	require.NoError(t, err)
	require.True(t, got.OK)
}

func TestDecode_MalformedPayload(t *testing.T) {
	_, err := envelope.Decode[struct{ X int }]([]byte("not json"))
	require.ErrorIs(t, err, envelope.ErrMalformedPayload)
}

// TestWithHeaderCopy_DoesNotMutateOriginal enforces the immutability
// invariant: "adding a header" produces a new Envelope via WithHeaderCopy.
func TestWithHeaderCopy_DoesNotMutateOriginal(t *testing.T) {
	orig := envelope.New("test.event", "publisher", nil)
	clone := orig.WithHeaderCopy("k", "v")

	_, origHas := orig.Header("k")
	require.False(t, origHas)

	v, cloneHas := clone.Header("k")
	require.True(t, cloneHas)
	require.Equal(t, "v", v)
}
