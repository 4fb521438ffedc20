package jobs

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
)

// JobMetrics records job outcomes. Satisfied by observability.Metrics.
type JobMetrics interface {
	JobFinished(task string, err error)
}

func finish(m JobMetrics, task string, err error) {
	if m != nil {
		m.JobFinished(task, err)
	}
}
