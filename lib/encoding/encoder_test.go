package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testState() map[string]any {
	return map[string]any{
		"countStore": 12345,
		"infoMsg":    "test-file.txt",
		"loaded":     true,
		"history":    []int{1, 2},
	}
}

func TestNewEncoder(t *testing.T) {
	_, err := NewEncoder([]byte("short"))
	require.NoError(t, err, "short keys are stretched")

	_, err = NewEncoder([]byte("this-is-a-32-byte-key-for-aes!!!"))
	require.NoError(t, err)
}

func TestRoundTrip(t *testing.T) {
	for _, sensitive := range []bool{false, true} {
		name := "signed"
		if sensitive {
			name = "encrypted"
		}
		t.Run(name, func(t *testing.T) {
			enc, err := NewEncoder([]byte("test-key"))
			require.NoError(t, err)

			encoded, err := enc.Encode(testState(), sensitive)
			require.NoError(t, err)
			require.NotEmpty(t, encoded)

			decoded, err := enc.Decode(encoded, sensitive)
			require.NoError(t, err)

			assert.EqualValues(t, 12345, decoded["countStore"])
			assert.Equal(t, "test-file.txt", decoded["infoMsg"])
			assert.Equal(t, true, decoded["loaded"])

			history, ok := decoded["history"].([]any)
			require.True(t, ok, "slices decode as []any")
			require.Len(t, history, 2)
			assert.EqualValues(t, 1, history[0])
			assert.EqualValues(t, 2, history[1])
		})
	}
}

func TestSignedIsVisible(t *testing.T) {
	enc, err := NewEncoder([]byte("test-key"))
	require.NoError(t, err)

	signed, err := enc.Encode(testState(), false)
	require.NoError(t, err)
	assert.Contains(t, signed, ".", "signed state carries a signature suffix")

	encrypted, err := enc.Encode(testState(), true)
	require.NoError(t, err)
	assert.NotContains(t, encrypted, ".")
}

func TestTampering(t *testing.T) {
	enc, err := NewEncoder([]byte("test-key"))
	require.NoError(t, err)

	t.Run("signature", func(t *testing.T) {
		encoded, err := enc.Encode(testState(), false)
		require.NoError(t, err)

		_, err = enc.Decode(encoded[:len(encoded)-2]+"XX", false)
		assert.ErrorIs(t, err, ErrSignatureInvalid)
	})

	t.Run("ciphertext", func(t *testing.T) {
		encoded, err := enc.Encode(testState(), true)
		require.NoError(t, err)

		_, err = enc.Decode(encoded[:len(encoded)-2]+"XX", true)
		assert.Error(t, err)
	})
}

func TestInvalidFormat(t *testing.T) {
	enc, err := NewEncoder([]byte("test-key"))
	require.NoError(t, err)

	_, err = enc.Decode("invalidbase64withoutseparator", false)
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = enc.Decode("c2hvcnQ", true)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestDifferentKeysCannotDecode(t *testing.T) {
	enc1, _ := NewEncoder([]byte("key-one"))
	enc2, _ := NewEncoder([]byte("key-two"))

	encoded, err := enc1.Encode(testState(), false)
	require.NoError(t, err)

	_, err = enc2.Decode(encoded, false)
	assert.ErrorIs(t, err, ErrSignatureInvalid)

	encoded, err = enc1.Encode(testState(), true)
	require.NoError(t, err)

	_, err = enc2.Decode(encoded, true)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestEmptyState(t *testing.T) {
	enc, err := NewEncoder([]byte("test-key"))
	require.NoError(t, err)

	encoded, err := enc.Encode(map[string]any{}, false)
	require.NoError(t, err)

	decoded, err := enc.Decode(encoded, false)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}
