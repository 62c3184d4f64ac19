/*
Package events provides the in-process event bus for TeamCache Manager.

The events package implements a lightweight broker for broadcasting engine
events to interested subscribers. The inline index command is one
subscriber; external façades built on the engine attach the same way
through the manager. Delivery is best-effort fan-out with no replay: a
subscriber that falls behind misses events rather than slowing the engine.

# Architecture

	┌──────────────────── EVENT BROKER ─────────────────────────┐
	│                                                           │
	│  Publisher → Event Channel (buffer: 100)                  │
	│       ↓                                                   │
	│  Broadcast Loop (single goroutine)                        │
	│       ↓                                                   │
	│  Subscriber Channels (buffer: 50 each, drop on full)      │
	│                                                           │
	│  Event variants:                                          │
	│    Index:  index-progress, index-complete, index-error    │
	│    Job:    job-created, job-started, job-progress,        │
	│            job-completed, job-failed                      │
	│    File:   file-started, file-completed, file-failed,     │
	│            file-progress (throttled)                      │
	└───────────────────────────────────────────────────────────┘

Events are a tagged sum type: one struct per kind with typed fields, all
implementing the Event interface. The broker stamps each published event
with a monotonic sequence number and a timestamp, so downstream consumers
can detect gaps introduced by drops.

# Usage

Publishing:

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	broker.Publish(&events.JobCreated{
		JobID:       job.ID,
		ProfileName: profile.Name,
		TotalFiles:  job.TotalFiles,
	})

Consuming:

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	for ev := range sub {
		switch e := ev.(type) {
		case *events.FileCompleted:
			fmt.Println("warmed", e.Path)
		case *events.JobCompleted:
			fmt.Println("job done", e.JobID)
		}
	}

# Delivery Semantics

  - Best-effort: a full subscriber buffer drops the event for that
    subscriber only
  - No replay: subscribers see events published after they subscribe
  - Ordering: a single broadcast goroutine preserves publish order
    per subscriber
  - Sequence numbers: monotonic across all kinds, gaps reveal drops

# Integration Points

  - pkg/indexer publishes index lifecycle events
  - pkg/coordinator publishes job-created and cancellation events
  - pkg/worker publishes file lifecycle and throttled progress events
  - pkg/manager exposes Subscribe/Unsubscribe to external façades
*/
package events
