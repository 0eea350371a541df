// Package diff parses raw unified diff text (as produced by git) into the
// domain's line-classified form: files, hunks, and numbered rows.
//
// Line numbers follow git's convention: context and added rows carry a
// new-file number, context and removed rows carry an old-file number. The
// new-file number is the coordinate space comments anchor to.
package diff
