// Package density maps a video's duration, the target mosaic width and a
// density setting to a thumbnail count.
//
// All functions are pure and total: every input yields a count within the
// relevant cap.
package density
