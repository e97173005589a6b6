// Package ingestion runs the image featurization pipeline.
//
// A Pipeline wires a StreamReader, a LoaderPool and an Orchestrator together
// through two unbounded queues:
//
//	reader -> ingress -> loaders (N workers) -> egress -> orchestrator -> sink
//
// Loading is concurrent; featurization happens on a single goroutine with one
// call in flight at a time. There is no end-of-stream marker. Workers and the
// orchestrator treat a bounded wait with no new work as exhaustion, so a run
// finishes Config.Timeout after the last item arrives.
//
// Per-image failures are logged and counted but never abort a run.
package ingestion
