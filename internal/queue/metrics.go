package queue

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	tasksEnqueued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "subpirate",
		Subsystem: "queue",
		Name:      "tasks_enqueued_total",
		Help:      "Total number of analysis tasks admitted to the queue",
	})
	tasksCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "subpirate",
		Subsystem: "queue",
		Name:      "tasks_completed_total",
		Help:      "Total number of analysis tasks that completed successfully",
	})
	tasksFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "subpirate",
		Subsystem: "queue",
		Name:      "tasks_failed_total",
		Help:      "Total number of analysis tasks that reached the failed state",
	})
	tasksRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "subpirate",
		Subsystem: "queue",
		Name:      "tasks_rejected_total",
		Help:      "Total number of enqueue requests rejected at admission",
	}, []string{"reason"})
)

var registerMetricsOnce sync.Once

func init() {
	registerMetricsOnce.Do(func() {
		prometheus.MustRegister(tasksEnqueued, tasksCompleted, tasksFailed, tasksRejected)
	})
}
