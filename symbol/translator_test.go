package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranslateMapWinsOverSuffix(t *testing.T) {
	t.Parallel()

	tr := NewTranslator(map[string]string{"XAUUSD": "GOLD"}, ".pro")

	assert.Equal(t, "GOLD", tr.Translate("XAUUSD"))
	assert.Equal(t, "EURUSD.pro", tr.Translate("EURUSD"))
}

func TestTranslateSuffixOnly(t *testing.T) {
	t.Parallel()

	tr := NewTranslator(nil, ".c")
	assert.Equal(t, "EURUSD.c", tr.Translate("EURUSD"))

	plain := NewTranslator(nil, "")
	assert.Equal(t, "EURUSD", plain.Translate("EURUSD"))
}

func TestReverse(t *testing.T) {
	t.Parallel()

	tr := NewTranslator(map[string]string{"XAUUSD": "GOLD"}, ".pro")

	assert.Equal(t, "XAUUSD", tr.Reverse("GOLD"))
	assert.Equal(t, "EURUSD", tr.Reverse("EURUSD.pro"))
	assert.Equal(t, "GBPUSD", tr.Reverse("GBPUSD"), "no suffix present")
}
