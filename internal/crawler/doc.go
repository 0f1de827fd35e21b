// Package crawler defines the core types and messages shared across the
// scheduler, worker pool, and content pipeline.
package crawler
