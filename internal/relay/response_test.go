package relay

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stringsReader(s string) io.Reader { return strings.NewReader(s) }

func TestDecodePayload(t *testing.T) {
	p, err := decodePayload([]byte(` [{"output":"hi"}] `))
	require.NoError(t, err)
	assert.Equal(t, payloadOutputList, p.kind)
	assert.Equal(t, "hi", p.text)

	p, err = decodePayload([]byte(`{"response":"hi","error":"oops"}`))
	require.NoError(t, err)
	assert.Equal(t, payloadResponseObject, p.kind)
	assert.Equal(t, "oops", p.partialError)

	p, err = decodePayload([]byte(`[null]`))
	require.NoError(t, err)
	assert.Equal(t, payloadUnknown, p.kind)

	p, err = decodePayload([]byte(`{"response":null}`))
	require.NoError(t, err)
	assert.Equal(t, payloadUnknown, p.kind)

	_, err = decodePayload([]byte(`{broken`))
	assert.Error(t, err)
	_, err = decodePayload(nil)
	assert.Error(t, err)
}
