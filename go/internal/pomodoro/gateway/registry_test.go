package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryCountsConnectionsPerUser(t *testing.T) {
	r := NewRegistry()

	r.Join(7, 1)
	r.Join(7, 1)
	r.Join(7, 2)
	r.Join(8, 2)
	assert.Equal(t, map[int64]int{7: 2, 8: 1}, r.Counts())

	r.Leave(7, 1)
	assert.Equal(t, map[int64]int{7: 2, 8: 1}, r.Counts(), "user 1 still has a connection")

	r.Leave(7, 1)
	r.Leave(8, 2)
	assert.Equal(t, map[int64]int{7: 1}, r.Counts())

	r.Leave(9, 5)

	r.Clear()
	assert.Empty(t, r.Counts())
}
