// Package hivesim is a framework for writing hive simulators.
//
// A simulator groups test cases into suites and hands them to Run. For every suite
// that matches the test pattern, the suite and its tests are registered with the
// simulation API, client containers are started on demand and the result of each
// test is reported back to hive. A test body that panics or calls FailNow fails only
// its own test case.
//
// Test cases are TestSpec (zero or one pre-started client), NClientTestSpec (a fixed
// list of freshly started clients) and ClientTestSpec (one test per available client
// type).
//
// A suite may also hold shared clients, started once before its first test and
// retrieved by tests with T.GetSharedClient.
package hivesim
