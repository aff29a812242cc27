// Package component defines the lifecycle interface shared by the parts of
// a client stack and a registry that starts them in order and stops them
// in reverse.
package component
