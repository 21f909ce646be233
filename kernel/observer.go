package kernel

import "github.com/tailored-agentic-units/registry-agent/observability"

// Kernel event types emitted during the research loop.
const (
	EventRunStart        observability.EventType = "kernel.run.start"
	EventRunComplete     observability.EventType = "kernel.run.complete"
	EventStepStart       observability.EventType = "kernel.step.start"
	EventWorkerResponse  observability.EventType = "kernel.worker.response"
	EventToolCall        observability.EventType = "kernel.tool.call"
	EventToolComplete    observability.EventType = "kernel.tool.complete"
	EventCheckpointSave  observability.EventType = "kernel.checkpoint.save"
	EventCheckpointStale observability.EventType = "kernel.checkpoint.stale"
	EventSynthesize      observability.EventType = "kernel.synthesize"
	EventError           observability.EventType = "kernel.error"
)
