// Package media turns the video players embedded in lesson pages into direct
// media file URLs.
//
// Vimeo players carry their stream list in an inline JSON config; YouTube
// videos are resolved through the YouTube client. Other players are not
// supported and are skipped by the caller.
package media
