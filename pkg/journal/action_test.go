package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionRoundTrip(t *testing.T) {
	in := Action{
		Kind:    ActionConj,
		Pos:     Position{Bytes: 1234, Part: 42, Dir: "archive/2024/01/15"},
		Count:   17,
		Payload: []byte("hello\nworld\n"),
	}

	out, err := decodeAction(encodeAction(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestActionRoundTrip_NoPayload(t *testing.T) {
	in := Action{Kind: ActionEnd, Pos: Position{Part: 8, Dir: "2024/01/16"}}

	out, err := decodeAction(encodeAction(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Nil(t, out.Payload)
}

func TestDecodeAction_Corrupted(t *testing.T) {
	cases := map[string][]byte{
		"empty":           nil,
		"short":           {actionVersion},
		"bad version":     {99, byte(ActionConj), 0, 0},
		"bad kind":        {actionVersion, 200, 0, 0, 0, 0, 0, 0, 0, 0},
		"truncated body":  {actionVersion, byte(ActionConj), 1, 2, 3},
		"length mismatch": append(encodeAction(Action{Kind: ActionConj, Payload: []byte("abc")}), 'x'),
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decodeAction(data)
			assert.Error(t, err)
		})
	}
}
