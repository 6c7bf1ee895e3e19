// Package assembler owns streaming message reassembly.
//
// Ownership boundary:
// - chunk buffering and start/end tag boundary detection
// - pending message queue
// - notification policy and parse error reporting
//
// One producer feeds chunks in arrival order through AddData; any number of
// consumers may drain the queue concurrently.
package assembler
