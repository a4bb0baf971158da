// Package metrics Prometheus-метрики спеллера.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TrialsTotal количество trial по результату: ok|starved.
	TrialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speller_trials_total",
		Help: "Trials by result",
	}, []string{"result"})

	// TrialDuration длительность trial от расписания до декодирования.
	TrialDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "speller_trial_duration_seconds",
		Help:    "Trial duration in seconds",
		Buckets: prometheus.LinearBuckets(1, 1, 12),
	})

	// EpochsScored оценённые классификатором эпохи.
	EpochsScored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "speller_epochs_scored_total",
		Help: "Epochs scored by the classifier",
	})

	// StimulusLag насколько таймер опоздал к дедлайну смены стимула.
	StimulusLag = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "speller_stimulus_lag_seconds",
		Help:    "Lateness of stimulus transitions against their absolute deadlines",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms .. ~200ms
	})

	// CommandsTotal применённые команды по виду.
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speller_commands_total",
		Help: "Commands applied to the input state by kind",
	}, []string{"kind"})

	// Sessions начатые и завершённые сессии.
	Sessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speller_sessions_total",
		Help: "Session lifecycle events",
	}, []string{"event"})

	// SuggestionLatency время получения подсказок по источнику.
	SuggestionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "speller_suggestion_duration_seconds",
		Help:    "Suggestion lookup duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	}, []string{"source"})
)
