// Package ngp assembles the instant-ngp style transforms.json scene description from a parsed COLMAP reconstruction.
//
// COLMAP poses map world points into a camera whose axes are X right, Y down, Z forward. The renderer expects
// camera-to-world matrices for a camera with X right, Y up, Z backward. CameraToWorld does both the inversion
// and the axis flip; everything else in the package is bookkeeping around it.
//
// Intrinsics come from the first camera of cameras.txt only. A reconstruction with several cameras is converted
// with the first camera's intrinsics for every frame.
package ngp
