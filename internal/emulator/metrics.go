package emulator

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/zephray/XserveFanSpeedController/pkg/fancontroller"
	"github.com/zephray/XserveFanSpeedController/pkg/softi2c"
	"github.com/zephray/XserveFanSpeedController/pkg/telemetry"
	"github.com/zephray/XserveFanSpeedController/pkg/uplink"
)

var (
	busEventsDesc = prometheus.NewDesc(
		"fanslave_bus_events_total",
		"Decoded bus events per bus (label kind is start, stop, address_match, address_mismatch, byte_written, byte_read, read_nack, ignored_edge)",
		[]string{"bus", "kind"}, nil,
	)
	busStateDesc = prometheus.NewDesc(
		"fanslave_bus_state",
		"Current protocol state of the bus decoder",
		[]string{"bus", "state"}, nil,
	)
	fanEnabledDesc = prometheus.NewDesc(
		"fanslave_fan_enabled",
		"Fan enabled by the host",
		[]string{"slot"}, nil,
	)
	fanRequestedDesc = prometheus.NewDesc(
		"fanslave_fan_requested_tach",
		"Tach count requested by the host",
		[]string{"slot"}, nil,
	)
	fanActualDesc = prometheus.NewDesc(
		"fanslave_fan_actual_tach",
		"Tach count reported to the host",
		[]string{"slot"}, nil,
	)
	controllerRoundsDesc = prometheus.NewDesc(
		"fanslave_controller_update_rounds_total",
		"Completed RPM update rounds",
		nil, nil,
	)
	controllerStartedDesc = prometheus.NewDesc(
		"fanslave_controller_started",
		"Fan master started",
		nil, nil,
	)
	uplinkPacketsDesc = prometheus.NewDesc(
		"fanslave_uplink_packets_total",
		"Packets received from the fan master",
		nil, nil,
	)
	uplinkErrorsDesc = prometheus.NewDesc(
		"fanslave_uplink_errors_total",
		"Dropped inbound frames and invalid packets",
		nil, nil,
	)
)

// Collector exports the emulator state at scrape time.
type Collector struct {
	buses      []*softi2c.Bus
	fans       *telemetry.State
	controller *fancontroller.Controller
	link       *uplink.Link
}

var _ prometheus.Collector = &Collector{}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- busEventsDesc
	ch <- busStateDesc
	ch <- fanEnabledDesc
	ch <- fanRequestedDesc
	ch <- fanActualDesc
	ch <- controllerRoundsDesc
	ch <- controllerStartedDesc
	if c.link != nil {
		ch <- uplinkPacketsDesc
		ch <- uplinkErrorsDesc
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, bus := range c.buses {
		id := strconv.Itoa(bus.ID())
		s := bus.Stats().Snapshot()
		for _, kv := range []struct {
			kind  string
			value uint32
		}{
			{"start", s.Starts},
			{"stop", s.Stops},
			{"address_match", s.AddressMatches},
			{"address_mismatch", s.AddressMismatches},
			{"byte_written", s.BytesWritten},
			{"byte_read", s.BytesRead},
			{"read_nack", s.ReadNacks},
			{"ignored_edge", s.IgnoredEdges},
		} {
			ch <- prometheus.MustNewConstMetric(busEventsDesc, prometheus.CounterValue, float64(kv.value), id, kv.kind)
		}
		ch <- prometheus.MustNewConstMetric(busStateDesc, prometheus.GaugeValue, 1, id, bus.State().String())
	}

	for _, f := range c.fans.Snapshot() {
		slot := strconv.Itoa(f.Slot)
		enabled := 0.0
		if f.Enabled {
			enabled = 1
		}
		ch <- prometheus.MustNewConstMetric(fanEnabledDesc, prometheus.GaugeValue, enabled, slot)
		ch <- prometheus.MustNewConstMetric(fanRequestedDesc, prometheus.GaugeValue, float64(f.RequestedTach), slot)
		ch <- prometheus.MustNewConstMetric(fanActualDesc, prometheus.GaugeValue, float64(f.ActualTach), slot)
	}

	started := 0.0
	if c.controller.Started() {
		started = 1
	}
	ch <- prometheus.MustNewConstMetric(controllerRoundsDesc, prometheus.CounterValue, float64(c.controller.Rounds()))
	ch <- prometheus.MustNewConstMetric(controllerStartedDesc, prometheus.GaugeValue, started)

	if c.link != nil {
		s := c.link.Stats()
		ch <- prometheus.MustNewConstMetric(uplinkPacketsDesc, prometheus.CounterValue, float64(s.Packets))
		ch <- prometheus.MustNewConstMetric(uplinkErrorsDesc, prometheus.CounterValue, float64(s.Errors))
	}
}
