// Package loader fetches watermark images and source videos into decodable
// local handles, with bounded retries and exponential backoff.
//
// Failure causes are tagged at the network boundary (timeout, HTTP status,
// network, decode, filesystem) so callers classify errors by kind instead of
// matching message text. Remote resources are staged into the run workspace;
// local paths are opened in place and never deleted on release.
package loader
