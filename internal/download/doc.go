// Package download stores remote files in the local directory tree.
//
// Every transfer goes to "<destination>.tmp_" first and is renamed into place
// only after the body was read completely, so the presence of the destination
// file means the download finished. A destination that already exists is
// never requested again; this is what makes an interrupted run resumable.
package download
