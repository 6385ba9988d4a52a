// Package crawler implements the bounded-concurrency site crawler: the
// frontier and visited set, seed discovery, link extraction and ranking,
// page categorization, coverage evaluation, and the engine that drives them.
package crawler
