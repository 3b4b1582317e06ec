package relay

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyGeneral(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		want    GeneralKind
		wantErr bool
	}{
		{name: "no type tag", frame: `{"content":"hi"}`, want: GeneralChat},
		{name: "null type tag", frame: `{"type":null,"content":"hi"}`, want: GeneralChat},
		{name: "thread", frame: `{"type":"thread"}`, want: GeneralThread},
		{name: "post", frame: `{"type":"post"}`, want: GeneralPost},
		{name: "unrecognized type", frame: `{"type":"banana"}`, want: GeneralOther},
		{name: "malformed", frame: `{oops`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, err := classifyGeneral([]byte(tt.frame))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestWrapBroadcastPreservesOriginalFrame(t *testing.T) {
	raw := []byte(`{"content":"hi","userId":"u1"}`)
	wrapped := wrapBroadcast(raw)

	var envelope struct {
		Message map[string]any `json:"message"`
	}
	require.NoError(t, json.Unmarshal(wrapped, &envelope))
	assert.Equal(t, "hi", envelope.Message["content"])
	assert.Equal(t, "u1", envelope.Message["userId"])
}

func TestParseSignal(t *testing.T) {
	signalType, frame, err := parseSignal([]byte(`{"type":"candidate","candidate":"c0","sdpMid":"0"}`))
	require.NoError(t, err)
	assert.Equal(t, SignalCandidate, signalType)
	assert.Contains(t, frame, "candidate")

	_, _, err = parseSignal([]byte(`[1,2,3]`))
	assert.Error(t, err, "non-object frames are malformed")

	signalType, _, err = parseSignal([]byte(`{"candidate":"no type"}`))
	require.NoError(t, err)
	assert.False(t, signalType.relayable())
}

func TestSignalTypeRelayable(t *testing.T) {
	assert.True(t, SignalOffer.relayable())
	assert.True(t, SignalAnswer.relayable())
	assert.True(t, SignalCandidate.relayable())
	assert.False(t, SignalLeave.relayable())
	assert.False(t, SignalType("").relayable())
	assert.False(t, SignalType("mute").relayable())
}

func TestAnnotateSender(t *testing.T) {
	_, frame, err := parseSignal([]byte(`{"type":"offer","sdp":"v=0"}`))
	require.NoError(t, err)

	payload, err := annotateSender(frame, "alice")
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(payload, &out))
	assert.Equal(t, "alice", out["sender"])
	assert.Equal(t, "offer", out["type"])
	assert.Equal(t, "v=0", out["sdp"])
}
