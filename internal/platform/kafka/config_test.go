package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBrokerList(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, BrokerList(" a:9092, ,b:9092 "))
	assert.Empty(t, BrokerList(""))
}
