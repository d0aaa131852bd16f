// Package colmap reads the text export of a COLMAP sparse reconstruction.
//
// Two tables are supported: cameras.txt (one intrinsics record per line) and images.txt (one pose line
// followed by one line of 2D observations per registered image). Only what the scene converter needs is
// kept; 2D observations and points3D.txt are never read.
package colmap
