// Package logging provides file-based structured logging with rotation for
// palank-rag. Commands log JSON lines to <data-dir>/logs/palank.log; the
// --verbose flag mirrors them to stderr for interactive troubleshooting.
package logging
