// Package framework contains the core integration test machinery: resource
// acquisition and release, test case execution, diagnostic capture, and
// report building.
//
// The general model is:
//
// 1. A test case declares the external resources it needs (processes,
// containers, mock services, scratch directories). The orchestrator acquires
// them before the case runs and releases every successfully acquired one
// afterward, in reverse order, no matter how the case ended.
//
// 2. There is a general notion of a test context which is similar to Go's
// *testing.T, allowing the body of a case to record failures, skip, emit
// debug output, and reach the acquired resources.
//
// 3. When a case fails, a capture sink collects diagnostic artifacts from
// the live resources before they are torn down, and the artifacts are
// attached to the case's outcome in the run report.
//
// The domain-specific code that knows what is being tested supplies the case
// definitions, the resource specs, and any custom capture sinks; the runner
// package wires them to a command line.
package framework
