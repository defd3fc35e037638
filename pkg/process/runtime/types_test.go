package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSharedValues(t *testing.T) {
	a := Artifact{}

	a.SetSharedValue("customer", "acme")
	a.SetSharedValue("customer", "globex")
	a.SetSharedValue("site", "north")

	v, ok := a.SharedValue("customer")
	assert.True(t, ok)
	assert.Equal(t, "globex", v)
	assert.Len(t, a.SharedInformation, 2)

	_, ok = a.SharedValue("missing")
	assert.False(t, ok)
}

func TestCloneDoesNotShareSlices(t *testing.T) {
	a := Artifact{
		Content:           []byte("abc"),
		SharedInformation: []StringPair{{Key: "k", Value: "v"}},
	}

	c := a.Clone()
	c.Content[0] = 'x'
	c.SharedInformation[0].Value = "changed"

	assert.Equal(t, []byte("abc"), a.Content)
	assert.Equal(t, "v", a.SharedInformation[0].Value)
}
