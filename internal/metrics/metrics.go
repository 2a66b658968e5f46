// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesLearned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "izumi_messages_learned_total",
		Help: "Messages absorbed by the learning extractor",
	})

	// Replies by the decision reason that triggered them.
	Replies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "izumi_replies_total",
		Help: "Replies sent, by trigger reason",
	}, []string{"reason"})

	QuickReplies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "izumi_quick_replies_total",
		Help: "Replies served from the local quick-response table",
	})

	LLMCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "izumi_llm_calls_total",
		Help: "LLM chat calls by model tier and outcome",
	}, []string{"tier", "outcome"})

	LLMLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "izumi_llm_call_duration_seconds",
		Help:    "LLM chat call latency in seconds",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})

	FallbackAdvances = promauto.NewCounter(prometheus.CounterOpts{
		Name: "izumi_llm_fallback_advances_total",
		Help: "Times the model ladder advanced to the next tier",
	})

	SessionResets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "izumi_session_resets_total",
		Help: "Channel chat sessions reset, by cause",
	}, []string{"cause"})

	Saves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "izumi_memory_saves_total",
		Help: "Unified document flushes by result",
	}, []string{"result"})

	MediaAnalyses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "izumi_media_analyses_total",
		Help: "Attachment and video analyses by result",
	}, []string{"result"})

	ScheduledRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "izumi_scheduler_runs_total",
		Help: "Background loop runs by loop name",
	}, []string{"loop"})

	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "izumi_commands_total",
		Help: "Command runs by command and result",
	}, []string{"command", "result"})
)

// ObserveSave counts one flush attempt.
func ObserveSave(err error) {
	if err != nil {
		Saves.WithLabelValues("error").Inc()
		return
	}
	Saves.WithLabelValues("ok").Inc()
}
