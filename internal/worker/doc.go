// Package worker runs the artifact build loop.
//
// The worker takes one build request at a time from the queue, holds the
// host-wide build lock for the whole request, and produces the requested
// timelapse video and keogram for the request's day-date and partition.
// Each artifact is written next to the image folder under a name derived
// from the day-date and partition, so an existing file means the build is
// already done. After a successful build the catalog gains a fresh record,
// any stale record for the same path having been removed first, and the
// artifact is handed to the upload queue when uploads of that kind are on.
//
// A request that cannot take the lock fails with ErrBuildInProgress without
// touching the catalog or the filesystem; allskyd treats that as fatal.
package worker
