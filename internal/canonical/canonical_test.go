package canonical

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ark074/SecureWipe3/internal/errors"
)

func TestMarshalSortsKeysAtEveryLevel(t *testing.T) {
	p1 := map[string]any{
		"method": "purge",
		"device": map[string]any{"serial": "SN1", "model": "X", "platform": "linux"},
		"evidence": []any{
			map[string]any{"out": "ok", "cmd": "blkdiscard"},
		},
	}
	p2 := map[string]any{
		"evidence": []any{
			map[string]any{"cmd": "blkdiscard", "out": "ok"},
		},
		"device": map[string]any{"model": "X", "platform": "linux", "serial": "SN1"},
		"method": "purge",
	}

	b1, err := Marshal(p1)
	require.NoError(t, err)
	b2, err := Marshal(p2)
	require.NoError(t, err)

	assert.Equal(t, b1, b2, "deeply equal payloads must canonicalize identically")
	assert.JSONEq(t, string(b1), string(b2))

	want := `{"device":{"model":"X","platform":"linux","serial":"SN1"},` +
		`"evidence":[{"cmd":"blkdiscard","out":"ok"}],"method":"purge"}`
	assert.Equal(t, want, string(b1))
}

func TestMarshalNoExtraneousWhitespace(t *testing.T) {
	b, err := Marshal(map[string]any{"a": 1, "b": []any{"x", "y"}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":["x","y"]}`, string(b))
}

func TestMarshalScalars(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "null"},
		{"true", true, "true"},
		{"false", false, "false"},
		{"integer-valued float", float64(7), "7"},
		{"fraction", 1.5, "1.5"},
		{"string", "a\"b", `"a\"b"`},
		{"html not escaped", "<ok>", `"<ok>"`},
		{"empty object", map[string]any{}, "{}"},
		{"empty array", []any{}, "[]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Marshal(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(b))
		})
	}
}

func TestMarshalStructsNormalize(t *testing.T) {
	type device struct {
		Serial   string `json:"serial"`
		Platform string `json:"platform"`
	}

	b1, err := Marshal(device{Serial: "SN1", Platform: "linux"})
	require.NoError(t, err)
	b2, err := Marshal(map[string]any{"platform": "linux", "serial": "SN1"})
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}

func TestMarshalRawMessage(t *testing.T) {
	raw := json.RawMessage(`{ "b" : 2, "a" : 1 }`)
	b, err := Marshal(raw)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2}`, string(b))

	_, err = Marshal(json.RawMessage(`{broken`))
	require.Error(t, err)
	assert.True(t, apperrors.IsSerialization(err))
}

func TestMarshalPreservesLargeIntegers(t *testing.T) {
	// 2^53+1 is not representable as a float64; the digits must survive
	// canonicalization bit for bit or the signature covers corrupted evidence.
	raw := json.RawMessage(`{"bytes_wiped":9007199254740993}`)
	b, err := Marshal(raw)
	require.NoError(t, err)
	assert.Equal(t, `{"bytes_wiped":9007199254740993}`, string(b))

	b, err = Marshal(map[string]any{"total": int64(9007199254740993)})
	require.NoError(t, err)
	assert.Equal(t, `{"total":9007199254740993}`, string(b))

	b, err = Marshal(map[string]any{"n": json.Number("18446744073709551615")})
	require.NoError(t, err)
	assert.Equal(t, `{"n":18446744073709551615}`, string(b))
}

func TestMarshalRejectsNonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := Marshal(map[string]any{"x": v})
		require.Error(t, err)
		assert.True(t, apperrors.IsSerialization(err), "expected serialization error for %v", v)
	}
}

func TestMarshalRejectsUnsupported(t *testing.T) {
	_, err := Marshal(map[string]any{"ch": make(chan int)})
	require.Error(t, err)
	assert.True(t, apperrors.IsSerialization(err))
}

func TestMarshalDeterministicAcrossRuns(t *testing.T) {
	payload := map[string]any{
		"job_id": "job-1",
		"nested": map[string]any{"z": []any{1.0, 2.0}, "a": true},
	}

	first, err := Marshal(payload)
	require.NoError(t, err)
	for range 50 {
		b, err := Marshal(payload)
		require.NoError(t, err)
		require.Equal(t, first, b)
	}
}

func TestSumSHA256(t *testing.T) {
	hash1, bytes1, err := SumSHA256(map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	hash2, _, err := SumSHA256(map[string]any{"b": 2, "a": 1})
	require.NoError(t, err)

	assert.Equal(t, hash1, hash2)
	assert.Len(t, hash1, 64)
	assert.Equal(t, `{"a":1,"b":2}`, string(bytes1))
}
