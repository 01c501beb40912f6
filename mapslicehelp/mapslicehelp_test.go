package mapslicehelp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

func TestOrderedMapKeys(t *testing.T) {
	m := orderedmap.New[string, int]()
	m.Set("c", 3)
	m.Set("a", 1)
	m.Set("b", 2)

	assert.Equal(t, []string{"c", "a", "b"}, OrderedMapKeys(m))

	empty := orderedmap.New[int, int]()
	assert.Empty(t, OrderedMapKeys(empty))
}
