package testhelpers

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertReadersEqual reads both readers to the end, from the start if they
// can seek, and compares their contents as strings.
func AssertReadersEqual(t testing.TB, expected io.Reader, actual io.Reader) {
	t.Helper()
	for _, reader := range []io.Reader{expected, actual} {
		if readerSeeker, ok := reader.(io.ReadSeeker); ok {
			readerSeeker.Seek(0, io.SeekStart)
		}
	}

	expectedBytes, err := io.ReadAll(expected)
	require.NoError(t, err)
	actualBytes, err := io.ReadAll(actual)
	require.NoError(t, err)

	assert.Equal(t, string(expectedBytes), string(actualBytes))
}
