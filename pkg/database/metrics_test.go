package database

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestPoolStatsCollector_Describe(t *testing.T) {
	c := NewPoolStatsCollector(nil, "marketplace")

	ch := make(chan *prometheus.Desc, 16)
	c.Describe(ch)
	close(ch)

	var names []string
	for d := range ch {
		names = append(names, d.String())
	}

	assert.Len(t, names, 8)
	joined := strings.Join(names, "\n")
	assert.Contains(t, joined, "db_pool_acquired_connections")
	assert.Contains(t, joined, "db_pool_acquire_duration_seconds_total")
}

func TestPoolStatsCollector_IsCollector(t *testing.T) {
	var _ prometheus.Collector = NewPoolStatsCollector(nil, "marketplace")
}
