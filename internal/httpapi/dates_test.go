package httpapi

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONDate(t *testing.T) {
	var v struct {
		A *jsonDate `json:"a"`
		B *jsonDate `json:"b"`
		C *jsonDate `json:"c"`
		D *jsonDate `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"2025-02-03","b":"2025-02-03T10:00:00+02:00","c":"","d":null}`), &v))

	assert.True(t, v.A.Equal(time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)))
	assert.True(t, v.B.Equal(time.Date(2025, 2, 3, 8, 0, 0, 0, time.UTC)))
	assert.True(t, v.C.IsZero())
	assert.Nil(t, v.D)

	assert.Error(t, json.Unmarshal([]byte(`{"a":"03/02/2025"}`), &v))
	assert.Error(t, json.Unmarshal([]byte(`{"a":12}`), &v))
}
