// Package sink provides docstream.Sink adapters for the supported
// destinations: kafka, elasticsearch, s3 (any gocloud blob bucket),
// kinesis, sqs and sns. Every adapter accepts at-least-once delivery;
// redelivered events overwrite or are deduplicated downstream where the
// destination supports it.
package sink
