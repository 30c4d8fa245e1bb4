// Package docstream replicates DocumentDB (or MongoDB) change streams to
// downstream sinks with at-least-once delivery.
//
// A Spec binds a watched Scope (a database or a single collection) to the
// source Feed, a CheckpointStore and a Dispatcher of Sinks. Each call to Run
// is a bounded invocation: it resumes the change feed after the stored
// Position, normalizes every data event to a Payload and puts it to all
// sinks in declared order, and periodically stores the position of the
// last event dispatched to every sink.
//
// Positions are opaque resume tokens issued by the feed. When no position is
// stored yet, Run bootstraps one by inserting and deleting a canary document
// and waiting for the delete to arrive on the feed; nothing before the canary
// is replicated.
//
// Run returns a Result whose Code is one of:
//
//	200  events were dispatched
//	201  there was nothing new to dispatch
//	202  a position was bootstrapped and no events followed it yet
//
// Failures abort the invocation without advancing the position past the last
// sync, so the next invocation redelivers. Sinks must therefore tolerate
// duplicates. Every failed invocation is reported once to the Alerter.
//
// Implementations live in sub packages:
//
//	dmongo     mongo-driver change streams, canary writer and checkpoints
//	dsql       mysql checkpoints table
//	dpebble    embedded pebble checkpoints
//	sink       kafka, elasticsearch, s3, kinesis, sqs and sns sinks
//	alert      sns and log alerters
//	dpatterns  RunForever and checkpoint store helpers
//	testmock   in-memory feed and sink for tests
package docstream
