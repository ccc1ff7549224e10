// Package container provides a sequence and an associative container whose
// storage is obtained through a memown.Adapter, so every byte they hold comes
// from, and goes back to, one caller-supplied allocator.
//
// Containers are not synchronized and must be Released to return their
// storage. Element types must be free of Go pointers.
package container
