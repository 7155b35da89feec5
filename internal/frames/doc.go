// Package frames provides the frame sources feeding the capture loop.
//
// DirSource replays still images from a directory and SnapshotSource polls an
// HTTP snapshot endpoint. Both normalise every frame to a base64 JPEG at the
// configured quality. Device enumeration and live video decoding are left to
// whatever process writes the images or serves the snapshots.
package frames
