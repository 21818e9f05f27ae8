// Package services holds the error taxonomy shared by pipeline components.
//
// Components wrap failures with a sentinel marker so the orchestrator can
// classify them without inspecting message text: capability and validation
// failures abort immediately, resource-load and recording failures fail the
// current run but remain eligible for the outer end-to-end retry, and
// transcode failures are downgraded to warnings with the native-format output
// delivered instead.
package services
