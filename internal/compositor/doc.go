// Package compositor turns a layout and a video into a single image.
//
// Frames are decoded concurrently, each inside its own errgroup task,
// styled into a tile the size of its layout cell and drawn onto a shared
// canvas under a mutex. Cells never overlap, so the finished image does not
// depend on the order in which frames complete.
package compositor
