package effector

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseGoTestJSON_TallyPassFail(t *testing.T) {
	output := `{"Action":"run","Test":"TestA"}
{"Action":"pass","Test":"TestA"}
{"Action":"run","Test":"TestB"}
{"Action":"fail","Test":"TestB"}
coverage: 83.3% of statements
`
	out := parseGoTestJSON(output)
	require.Equal(t, 2, out.TestsTotal)
	require.Equal(t, 1, out.TestsPassed)
	require.Equal(t, 1, out.TestsFailed)
	require.NotNil(t, out.Coverage)
	require.InDelta(t, 0.833, *out.Coverage, 1e-3)
}

func TestParseGoTestJSON_NoTests(t *testing.T) {
	out := parseGoTestJSON("")
	require.Equal(t, 0, out.TestsTotal)
	require.Nil(t, out.Coverage)
}

func TestExtractCoveragePercent(t *testing.T) {
	v, ok := extractCoveragePercent("coverage: 57.1% of statements in ./...")
	require.True(t, ok)
	require.InDelta(t, 0.571, v, 1e-3)

	_, ok = extractCoveragePercent("no coverage info here")
	require.False(t, ok)
}
