package codegen

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaleReferenceFormat(t *testing.T) {
	at := time.Date(2024, time.March, 9, 12, 0, 0, 0, time.UTC)
	ref, err := SaleReference(at)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^SL-202403-[A-Z0-9]{8}$`), ref)
}

func TestRegistryCodes(t *testing.T) {
	agent, err := AgentCode()
	require.NoError(t, err)
	assert.Regexp(t, `^AGT-[A-Z0-9]{6}$`, agent)

	closer, err := CloserCode()
	require.NoError(t, err)
	assert.Regexp(t, `^CLS-[A-Z0-9]{6}$`, closer)
}

func TestRandomVaries(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 50; i++ {
		code, err := Random(8)
		require.NoError(t, err)
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 45)
}
