// Package resource provides ready-made resource kinds for integration
// tests: foreground commands, background processes, docker containers, mock
// HTTP services, external service checks, and scratch directories.
//
// Each kind comes as a spec (the declarative description a test case lists)
// and a handle (the live resource the case interacts with). Handles that can
// describe their state also act as diagnostic sources when a case fails.
package resource
