//go:build !tinygo

package hal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pinEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fanslave",
		Name:      "pin_events_total",
		Help:      "Edge events reported by the GPIO driver",
	}, []string{"bus", "line"})
	pinEventsMasked = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fanslave",
		Name:      "pin_events_masked_total",
		Help:      "Edge events dropped because the line was not armed for them",
	}, []string{"bus", "line"})
	pinErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fanslave",
		Name:      "pin_errors_total",
		Help:      "Failed line reads and reconfigurations",
	}, []string{"bus"})
)
