// Package elements contains the hint producers the server ships with.
//
// Every element here is driven by the scheduler's tick goroutine; methods
// that mutate an element from elsewhere must be submitted through the
// engine command queue.
package elements
