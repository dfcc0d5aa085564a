// Package suiterun prepares a test environment and runs test suites in sequence.
package suiterun

// Version is the suiterun release version.
var Version = "0.3.0"
