package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageCodec_CarriesPayload(t *testing.T) {
	var codec MessageCodec
	in := Done{Customer: "customer-0007", Duration: 2500 * time.Millisecond, Teller: "teller-2"}

	data, err := codec.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"DONE","customer":"customer-0007","teller":"teller-2","duration":2500000000}`, string(data))

	out, err := codec.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestMessageCodec_PayloadFreeKinds(t *testing.T) {
	var codec MessageCodec
	for _, m := range []Message{Finish{}, Close{}, Stop{}} {
		data, err := codec.Marshal(m)
		require.NoError(t, err)
		assert.JSONEq(t, `{"kind":"`+string(m.Kind())+`"}`, string(data))
	}
}

func TestMessageCodec_Errors(t *testing.T) {
	var codec MessageCodec

	_, err := codec.Marshal("not a message")
	assert.Error(t, err)

	_, err = codec.Unmarshal([]byte(`{"kind":"TELEPORT"}`))
	assert.ErrorContains(t, err, "unknown message kind")

	_, err = codec.Unmarshal([]byte(`{`))
	assert.ErrorContains(t, err, "decoding message")
}
