// Package harness runs scenario files against a real sequencing session.
//
// A scenario is a YAML document naming a sequencing configuration, a list of
// steps (navigation requests and progress reports), and assertions on the
// final session state. The harness compiles the configuration, drives a
// session through the steps with fixed identifiers and a deterministic
// selection source, and records every outcome in a trace.
//
// Traces are canonically serialized, so a scenario run twice produces
// byte-identical output. Golden files under testdata/golden pin expected
// traces; regenerate them with:
//
//	go test ./internal/harness -update
package harness
