package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "remittances_pending",
			Help: "Remittances awaiting a payment outcome",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM remittances WHERE status = 'PENDING'")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "segments_unclaimed",
			Help: "Live time segments with no active claim",
		},
		func() float64 {
			return queryCount(db, logger, `
				SELECT COUNT(*) FROM time_segments s
				WHERE s.deleted_at IS NULL AND (s.remittance_line_id IS NULL OR EXISTS (
					SELECT 1 FROM remittance_lines rl
					JOIN remittances r ON r.id = rl.remittance_id
					WHERE rl.id = s.remittance_line_id AND r.status IN ('FAILED','CANCELLED')))`)
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
