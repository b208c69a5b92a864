package delegation_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	delegation "github.com/armatrix/agent-delegation-go"
)

func TestGenerateID(t *testing.T) {
	id := delegation.GenerateID(delegation.PrefixTrace)
	assert.Regexp(t, regexp.MustCompile(`^trc_\d{8}T\d{6}_[0-9a-f]{16}$`), id)
}

func TestGenerateID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := delegation.GenerateID(delegation.PrefixEdge)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
