package service

import (
	"time"

	"roomsense/internal/core/domain"
)

const (
	// HistoryCapacity bounds the chart window: pushing a 21st point
	// evicts the oldest.
	HistoryCapacity = 20

	placeholderLen   = 5
	placeholderLabel = "--"
	timeLabelLayout  = "15:04:05"
)

// HistoryCache is the sliding window behind the report-detail chart:
// four parallel bounded series (time labels, temp, humid, lux), filled
// once from persisted history and then appended to on live updates.
// One instance exists per open report session; switching devices resets
// it.
type HistoryCache struct {
	labels []string
	temps  []float64
	humids []float64
	lights []float64

	last    domain.HistorySample
	hasLast bool
}

func NewHistoryCache() *HistoryCache {
	return &HistoryCache{}
}

// Backfill replaces the cache content with persisted samples, oldest to
// newest, keeping at most the last HistoryCapacity of them.
func (c *HistoryCache) Backfill(samples []domain.HistorySample) {
	c.Reset()
	if len(samples) > HistoryCapacity {
		samples = samples[len(samples)-HistoryCapacity:]
	}
	for _, s := range samples {
		c.push(s)
	}
}

// PushLive appends one live sample. Returns false when the sensor
// triple equals the last pushed one: toggle-only device updates must
// not distort the time axis with duplicate points.
func (c *HistoryCache) PushLive(s domain.HistorySample) bool {
	if c.hasLast && c.last.Temp == s.Temp && c.last.Humid == s.Humid && c.last.Lux == s.Lux {
		return false
	}
	c.push(s)
	return true
}

func (c *HistoryCache) push(s domain.HistorySample) {
	c.labels = append(c.labels, time.UnixMilli(s.LastUpdate).Format(timeLabelLayout))
	c.temps = append(c.temps, s.Temp)
	c.humids = append(c.humids, s.Humid)
	c.lights = append(c.lights, s.Lux)
	if len(c.labels) > HistoryCapacity {
		c.labels = c.labels[1:]
		c.temps = c.temps[1:]
		c.humids = c.humids[1:]
		c.lights = c.lights[1:]
	}
	c.last = s
	c.hasLast = true
}

// Series returns the labels and values for one chart kind. An empty
// cache yields a fixed-length placeholder series so the chart renders a
// flat baseline instead of erroring on an empty set.
func (c *HistoryCache) Series(kind string) ([]string, []float64) {
	if len(c.labels) == 0 {
		labels := make([]string, placeholderLen)
		for i := range labels {
			labels[i] = placeholderLabel
		}
		return labels, make([]float64, placeholderLen)
	}
	labels := append([]string(nil), c.labels...)
	var src []float64
	switch kind {
	case domain.ChartKindHumidity:
		src = c.humids
	case domain.ChartKindLight:
		src = c.lights
	default:
		src = c.temps
	}
	return labels, append([]float64(nil), src...)
}

func (c *HistoryCache) Len() int {
	return len(c.labels)
}

func (c *HistoryCache) Reset() {
	c.labels = nil
	c.temps = nil
	c.humids = nil
	c.lights = nil
	c.hasLast = false
}
