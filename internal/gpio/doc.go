// Package gpio reads the push button from a Linux GPIO character device.
//
// The line is sampled by level on every loop tick. Debounce and press
// classification happen in package input.
package gpio
