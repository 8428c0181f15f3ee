/*
Package export buffers completed spans and ships them to a collector.

The pipeline is Open -> Closed -> Queued -> Exported, with one documented
escape hatch: Queued -> DroppedOnOverflow. The queue is a bounded channel
shared by many request goroutines (producers) and a single background
flusher (consumer); producers never block, so tracing adds no backpressure
to request latency.

Flushes trigger on a batch-size threshold or a timer, whichever comes first.
Transport is HTTP POST of a JSON batch through hashicorp/go-retryablehttp,
which provides the bounded exponential backoff; batches that still fail are
discarded and counted. Nothing in this package returns an error to the
request path.
*/
package export
