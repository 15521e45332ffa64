package sqlutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInt64RoundTrip(t *testing.T) {
	assert.False(t, ToSqlInt64(nil).Valid)
	assert.Nil(t, FromSqlInt64(ToSqlInt64(nil)))

	v := int64(7)
	got := FromSqlInt64(ToSqlInt64(&v))
	if assert.NotNil(t, got) {
		assert.Equal(t, int64(7), *got)
	}
}

func TestNullRawMessage(t *testing.T) {
	assert.False(t, ToNullRawMessage(nil).Valid)
	assert.Nil(t, FromNullRawMessage(ToNullRawMessage(nil)))

	raw := json.RawMessage(`{"duration":25}`)
	n := ToNullRawMessage(raw)
	assert.True(t, n.Valid)
	assert.JSONEq(t, string(raw), string(FromNullRawMessage(n)))
}
