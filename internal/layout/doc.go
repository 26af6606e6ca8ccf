// Package layout solves where each thumbnail of a mosaic goes.
//
// Three strategies are available:
//   - Classic: a uniform grid whose row count is searched to best fill a
//     canvas of the target aspect ratio.
//   - Custom: three horizontal bands where the middle band uses thumbnails
//     at twice the linear scale, giving the middle of the timeline priority.
//   - Auto: a uniform grid sized to the largest available display.
//
// Solve never fails. Every rectangle it returns lies inside the canvas and
// the solver may place fewer thumbnails than requested, never more.
package layout
