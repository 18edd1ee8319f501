// Package services defines the shared error taxonomy for the storyboard
// pipeline and hosts the clients for generative backends.
//
// Every pipeline stage wraps its failures with one of the exported sentinel
// errors so callers can classify a failure (load, parse, reference,
// validation, generation, external tool) without string matching. Backend
// clients live in subpackages and perform exactly one call per invocation;
// retry and timeout policy belongs to the generation orchestrator, not here.
package services
