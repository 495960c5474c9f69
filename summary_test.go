package hivesim

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-hivesim/types"
)

func TestSummaryRender(t *testing.T) {
	s := newSummary()
	s.recordResult("rpc", "chain id", types.TestResult{Pass: true}, 1500*time.Millisecond)
	s.recordResult("rpc", "balance", types.TestResult{Pass: false, Details: "\nwrong balance\nstack"}, time.Second)
	s.recordSkip("rpc", "logs")
	s.recordResult("eth", "colored", types.TestResult{Pass: false, Details: "\x1b[31mpeer dropped\x1b[0m"}, time.Second)

	require.Equal(t, Stats{Total: 4, Passed: 1, Failed: 2, Skipped: 1}, s.Stats())
	tests := s.Tests()
	require.Len(t, tests, 4)
	require.Equal(t, "peer dropped", tests[3].Details)
	require.Equal(t, StatusFail, tests[1].Status)
	require.Equal(t, "wrong balance", tests[1].Details)

	var buf bytes.Buffer
	s.Render(&buf)
	out := buf.String()
	require.Contains(t, out, "chain id")
	require.Contains(t, out, "1.5s")
	require.Contains(t, out, "wrong balance")
	require.Contains(t, out, "1 passed, 2 failed, 1 skipped")
	require.Contains(t, out, "4 tests")
	require.NotContains(t, out, "PASSED")
}
