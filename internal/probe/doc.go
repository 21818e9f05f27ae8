// Package probe checks whether the host can run the watermarking pipeline
// before any work is committed.
//
// Capability checks cover the external encode/inspect binaries and the
// output codec support the recorder needs; soft gaps surface as warnings.
// The memory precheck is advisory and fails open when the host does not
// expose usable memory statistics.
package probe
