// Package store keeps the latest committed sample of every chart and
// publishes each commit to subscribers.
//
// [MemoryStore] is a [sink.Sink]: the collector feeds it alongside the
// netdata output, and the HTTP server reads from it. It is the only sink
// shared between goroutines and is safe for concurrent use.
//
// The main components are:
//
//   - [Store]: Interface defining read and subscription operations
//   - [MemoryStore]: In-memory implementation of Store and sink.Sink
//   - [ChartSample]: Storage representation of one committed chart sample
//
// Subscribers receive updates via channels with non-blocking sends (slow
// subscribers will miss updates rather than block the round).
package store
