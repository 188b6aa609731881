package timex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationUnmarshal(t *testing.T) {
	var s struct {
		Interval Duration `json:"interval"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"interval":"90s"}`), &s))
	assert.Equal(t, 90*time.Second, s.Interval.Duration)

	require.NoError(t, json.Unmarshal([]byte(`{"interval":60000000000}`), &s))
	assert.Equal(t, time.Minute, s.Interval.Duration)

	assert.Error(t, json.Unmarshal([]byte(`{"interval":"soon"}`), &s))
	assert.Error(t, json.Unmarshal([]byte(`{"interval":true}`), &s))
}

func TestDurationMarshal(t *testing.T) {
	b, err := json.Marshal(Duration{Duration: 2 * time.Hour})
	require.NoError(t, err)
	assert.Equal(t, `"2h0m0s"`, string(b))
}
