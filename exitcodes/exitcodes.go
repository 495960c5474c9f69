// Package exitcodes defines the exit codes of hive simulators built with hivesim.
package exitcodes

// Test results are reported to hive, so failing tests do not change the exit code
// of a simulator:
//
// * Success (0): the run completed, whatever the test results
// * RuntimeErr (2): configuration errors or a simulation API failure aborted the run
const (
	Success    = 0 // Run completed
	RuntimeErr = 2 // Configuration or simulation API errors
)
