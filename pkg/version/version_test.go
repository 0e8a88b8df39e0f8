package version_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/ordtree/pkg/version"
)

func TestString(t *testing.T) {
	t.Parallel()

	line := version.String()
	assert.True(t, strings.HasPrefix(line, "ordtree "))
	assert.Contains(t, line, "commit: ")
	assert.Contains(t, line, "built: ")
}
