package task

// Event types published while a task runs.
const (
	EventCrewStarted   = "CREW_STARTED"
	EventAgentAction   = "AGENT_ACTION"
	EventTaskStatus    = "TASK_STATUS"
	EventCrewCompleted = "CREW_COMPLETED"
	EventCrewError     = "CREW_ERROR"
	EventStreamError   = "STREAM_ERROR"
)

// Event is a single progress notification for a running task.
// Events are delivered best-effort and are not persisted.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}
