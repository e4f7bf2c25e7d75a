package assist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionsMonotonicAndReset(t *testing.T) {
	v := NewVersions()
	assert.Equal(t, InitialVersion, v.Next())
	assert.Equal(t, int64(2), v.Next())
	assert.Equal(t, int64(3), v.Next())

	v.Reset()
	assert.Equal(t, InitialVersion, v.Next())
}

func TestDocumentURI(t *testing.T) {
	assert.Equal(t, "untitled:document", DocumentURI(""))
	assert.Equal(t, "file:///workspace/main.md", DocumentURI("/workspace/main.md"))
}
