// Package setup checks that the local host can provision containers with the
// selected backend: root privileges, the backend's command line tools and the
// network bridge containers attach to.
//
// Checks only report; nothing on the host is changed. Like the other
// script-style helpers this package logs through a package logger set with
// SetLogger.
package setup
