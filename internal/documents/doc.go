// Package documents implements the DocumentOrchestrator: the owner of the
// current session's documentation-generation jobs.
//
// The [Orchestrator] keeps an ordered snapshot of jobs that is replaced
// wholesale by every listing. While the snapshot contains a job in the
// processing state and the orchestrator has been started, a background poll
// loop checks each processing job's status once per interval. When any
// status has moved on, the whole sequence is listed again, and the loop
// keeps running only while something is still processing.
//
// # Poll Loop
//
// Ticks never overlap: the next tick is scheduled only after the previous
// tick's status checks (each bounded by a timeout) and re-list have
// resolved. A failed status check is logged and retried on the next tick.
// The loop ends when nothing is processing, when [Orchestrator.Stop] is
// called, when the owner's context ends, or when the session ends.
//
// # Session Coupling
//
// Given a bus, the orchestrator subscribes to session changes. Logging out
// (or switching user) clears the job sequence, stops the loop and discards
// the results of any call still in flight.
//
// # Basic Usage
//
//	orch := documents.New(client, documents.WithBus(bus), documents.WithLogger(logger))
//	defer orch.Close()
//
//	if err := orch.Start(ctx); err != nil {
//	    return err
//	}
//	jobs, err := orch.List(ctx)
//	matches := orch.Filter("api")
package documents
