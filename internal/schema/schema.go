// Package schema provides the operating system seams shared by the other
// packages. It wraps the (Unix-based) syscalls needed for backing a block
// device with an image file, so that they can be replaced in tests.
package schema
