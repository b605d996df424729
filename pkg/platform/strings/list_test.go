package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList(""))
	assert.Nil(t, SplitList(" , ,"))
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"},
		SplitList(" kafka-1:9092,kafka-2:9092 , kafka-1:9092,"))
}
