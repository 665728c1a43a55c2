package domain

import "time"

// Built-in scheduled tasks.
const (
	TaskIDIncrementalUpdate = "incremental-update"
	TaskIDOptimize          = "optimize"
)

// BuiltinTaskIDs lists the tasks the daemon knows how to run, in run order.
func BuiltinTaskIDs() []string {
	return []string{TaskIDIncrementalUpdate, TaskIDOptimize}
}

// TaskName returns the display name of a built-in task.
func TaskName(id string) string {
	switch id {
	case TaskIDIncrementalUpdate:
		return "Incremental Update"
	case TaskIDOptimize:
		return "Store Optimisation"
	default:
		return id
	}
}

// ScheduledTask is the persisted state of one recurring daemon task.
type ScheduledTask struct {
	ID       string
	Name     string
	Interval time.Duration
	Enabled  bool

	LastRun     time.Time
	NextRun     time.Time
	LastSuccess time.Time

	// LastError is the message of the most recent failure, cleared on success.
	LastError string
}

// Due reports whether the task should run at now.
func (t *ScheduledTask) Due(now time.Time) bool {
	return t.Enabled && !t.NextRun.After(now)
}

// Complete folds a finished run into the task state. A failed run waits a
// full interval like a successful one.
func (t *ScheduledTask) Complete(r *TaskResult) {
	t.LastRun = r.StartedAt
	t.NextRun = r.EndedAt.Add(t.Interval)
	if r.Success {
		t.LastSuccess = r.EndedAt
		t.LastError = ""
		return
	}
	t.LastError = r.Error
}

// TaskResult is one entry of a task's run history.
type TaskResult struct {
	TaskID    string
	StartedAt time.Time
	EndedAt   time.Time
	Success   bool
	Error     string

	// ItemsProcessed counts records inserted or updated by a sync run.
	ItemsProcessed int
}

// Duration returns how long the run took.
func (r *TaskResult) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// SchedulerConfig is the [scheduler] section of the settings.
type SchedulerConfig struct {
	// Enabled is the master switch. When false no task runs.
	Enabled     bool
	TaskConfigs map[string]TaskConfig
}

// TaskConfig configures one task. An interval of zero disables it.
type TaskConfig struct {
	Enabled  bool
	Interval time.Duration
}

// GetTaskConfig returns the configuration for taskID, or the zero value.
func (c *SchedulerConfig) GetTaskConfig(taskID string) TaskConfig {
	return c.TaskConfigs[taskID]
}

// DefaultSchedulerConfig runs the update daily, matching the upstream
// extract refresh, and optimises the store weekly.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled: true,
		TaskConfigs: map[string]TaskConfig{
			TaskIDIncrementalUpdate: {Enabled: true, Interval: 24 * time.Hour},
			TaskIDOptimize:          {Enabled: true, Interval: 7 * 24 * time.Hour},
		},
	}
}
