// Package symbol maps master-broker symbol names onto the naming convention
// of a slave broker.
package symbol

import "strings"

// Translator converts master symbols to a slave broker's format. An explicit
// map entry always wins; otherwise the broker suffix is appended.
type Translator struct {
	Map    map[string]string
	Suffix string
}

func NewTranslator(symbolMap map[string]string, suffix string) *Translator {
	if symbolMap == nil {
		symbolMap = make(map[string]string)
	}
	return &Translator{Map: symbolMap, Suffix: suffix}
}

// Translate returns the slave-side name for a master symbol.
func (t *Translator) Translate(master string) string {
	if slave, ok := t.Map[master]; ok {
		return slave
	}
	return master + t.Suffix
}

// Reverse maps a slave-side name back to the master symbol.
func (t *Translator) Reverse(slave string) string {
	for m, s := range t.Map {
		if s == slave {
			return m
		}
	}
	if t.Suffix != "" && strings.HasSuffix(slave, t.Suffix) {
		return strings.TrimSuffix(slave, t.Suffix)
	}
	return slave
}
