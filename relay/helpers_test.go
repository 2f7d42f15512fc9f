package relay_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustFrame(t *testing.T, parts ...any) string {
	t.Helper()
	data, err := json.Marshal(parts)
	require.NoError(t, err)
	return string(data)
}
