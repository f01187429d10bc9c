// Command allsky is the operator CLI for the artifact pipeline. It enqueues
// build requests for allskyd, imports and lists frames, lists generated
// artifacts, and stacks images offline.
package main
