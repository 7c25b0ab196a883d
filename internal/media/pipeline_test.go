package media

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoop(t *testing.T) {
	var p Pipeline = Noop{}

	assert.False(t, p.Configured())
	assert.Nil(t, p.Upload(context.Background(), []byte("data"), "-1001", 1, "jpg"))
}

func TestObjectName(t *testing.T) {
	data := []byte("image bytes")

	name := objectName(data, "-1001", 42, "jpg")
	assert.True(t, strings.HasPrefix(name, "-1001/42-"))
	assert.True(t, strings.HasSuffix(name, ".jpg"))

	// identical bytes produce the same name
	assert.Equal(t, name, objectName(data, "-1001", 42, "jpg"))

	// different bytes produce a different name
	assert.NotEqual(t, name, objectName([]byte("other"), "-1001", 42, "jpg"))
}
