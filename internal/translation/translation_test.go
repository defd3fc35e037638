package translation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateEnglish(t *testing.T) {
	c := Default()

	msg := c.Translate("process.errors.process-instance-not-found", int64(7))

	assert.Equal(t, "The process instance 7 can not be found", msg)
}

func TestTranslateFallsBackToEnglish(t *testing.T) {
	c, err := New("ES")
	require.NoError(t, err)
	assert.Equal(t, "es", c.Language())

	assert.Equal(t, "No se encuentra la instancia de proceso 7", c.Translate("process.errors.process-instance-not-found", int64(7)))
	assert.Equal(t, "The process instance 7 is completed", c.Translate("process.errors.process-instance-completed", int64(7)))
}

func TestTranslateUnknownKey(t *testing.T) {
	c := Default()

	assert.Equal(t, "some.key", c.Translate("some.key"))
	assert.Equal(t, "some.key [1]", c.Translate("some.key", 1))
}

func TestUnknownLanguage(t *testing.T) {
	_, err := New("xx")
	assert.Error(t, err)
}
