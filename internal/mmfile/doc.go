// Package mmfile provides platform-specific helpers for obtaining raw memory
// to back simulated physical regions.
package mmfile
