package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/annolab/tile-ingest/internal/store"
)

type projectStatsCollector struct {
	store                 store.Store
	totalProjects         *prometheus.Desc
	totalTiles            *prometheus.Desc
	totalProjectsByStatus *prometheus.Desc
}

func newProjectStatsCollector(s store.Store) prometheus.Collector {
	fqName := func(name string) string {
		return fmt.Sprintf("%s_projects_%s", tileIngest, name)
	}

	return &projectStatsCollector{
		store: s,
		totalProjects: prometheus.NewDesc(
			fqName("total"),
			"Total number of projects.",
			nil,
			prometheus.Labels{},
		),
		totalTiles: prometheus.NewDesc(
			fqName("tiles_total"),
			"Total number of tiles across all projects.",
			nil,
			prometheus.Labels{},
		),
		totalProjectsByStatus: prometheus.NewDesc(
			fqName("by_status_total"),
			"Total projects by status.",
			[]string{"status"},
			prometheus.Labels{},
		),
	}
}

// RegisterStoreCollector exposes the project statistics gauges backed by the
// data store.
func RegisterStoreCollector(s store.Store) {
	prometheus.MustRegister(newProjectStatsCollector(s))
}

func (c *projectStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalProjects
	ch <- c.totalTiles
	ch <- c.totalProjectsByStatus
}

// Collect implements Collector.
func (c *projectStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stats, err := c.store.Statistics(context.Background())
	if err != nil {
		zap.S().Named("project_collector").Errorf("failed to collect project statistics: %s", err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.totalProjects, prometheus.GaugeValue, float64(stats.TotalProjects))
	ch <- prometheus.MustNewConstMetric(c.totalTiles, prometheus.GaugeValue, float64(stats.TotalTiles))

	for status, total := range stats.ProjectsByStatus {
		ch <- prometheus.MustNewConstMetric(c.totalProjectsByStatus, prometheus.GaugeValue, float64(total), status)
	}
}
