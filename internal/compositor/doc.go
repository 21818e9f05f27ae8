// Package compositor computes watermark placement and draws the overlay onto
// decoded video frames.
//
// Geometry is resolved once per run from the overlay spec and the source
// dimensions; the watermark is scaled and has its opacity premultiplied up
// front so the per-frame work is a single Over draw.
package compositor
