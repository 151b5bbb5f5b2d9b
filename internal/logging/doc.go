// Package logging provides structured JSON logging for amanrag with a
// size-rotating log file under ~/.amanrag/logs/ and an optional stderr tee,
// plus a small viewer used by 'amanrag logs' to tail and filter that file.
package logging
