package bus

import (
	"strings"
	"testing"

	"github.com/rustyeddy/copytrader/broker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeOpen(t *testing.T) {
	t.Parallel()

	sig := NewOpen(555, "EURUSD", broker.Buy, 0.10, 1.10000, 1.09500, 1.11000)
	raw, err := sig.Encode("TRADE")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(raw, "TRADE "), "leading topic token")
	assert.Contains(t, raw, `"action":"OPEN"`)
	assert.Contains(t, raw, `"ticket":555`)
	assert.Contains(t, raw, `"type":0`)
	assert.Contains(t, raw, `"sl":1.095`)
}

func TestEncodeClose(t *testing.T) {
	t.Parallel()

	raw, err := NewClose(555, "EURUSD").Encode("TRADE")
	require.NoError(t, err)

	assert.Contains(t, raw, `"action":"CLOSE"`)
	assert.NotContains(t, raw, "volume", "close payload carries no order fields")
	assert.NotContains(t, raw, "price")
}

func TestDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	open := NewOpen(555, "EURUSD", broker.Sell, 0.25, 1.10000, 0, 0)
	raw, err := open.Encode("TRADE")
	require.NoError(t, err)

	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, open, got)

	cls := NewClose(555, "EURUSD")
	raw, err = cls.Encode("TRADE")
	require.NoError(t, err)

	got, err = Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, cls, got)
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
	}{
		{"no separator", "TRADE"},
		{"not json", "TRADE {nope"},
		{"unknown action", `TRADE {"action":"MODIFY","ticket":1,"symbol":"EURUSD"}`},
		{"missing ticket", `TRADE {"action":"OPEN","symbol":"EURUSD","volume":0.1}`},
		{"negative ticket", `TRADE {"action":"CLOSE","ticket":-4,"symbol":"EURUSD"}`},
		{"missing symbol", `TRADE {"action":"CLOSE","ticket":5}`},
		{"bad order type", `TRADE {"action":"OPEN","ticket":5,"symbol":"EURUSD","type":7,"volume":0.1}`},
		{"zero volume", `TRADE {"action":"OPEN","ticket":5,"symbol":"EURUSD","type":0,"volume":0}`},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.raw)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestEncodeUnknownAction(t *testing.T) {
	t.Parallel()

	_, err := Signal{Action: "MODIFY", Ticket: 1, Symbol: "EURUSD"}.Encode("TRADE")
	assert.ErrorIs(t, err, ErrMalformed)
}
