package monitoring

import (
	"context"
	"database/sql"
	"time"

	"github.com/isdelr/recipe-api-be/internal/metrics"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/mem"
)

// countedTables are sampled into the recipe_stored_rows gauge.
var countedTables = []string{"users", "recipes", "tags", "ingredients", "events"}

// StatUpdater periodically samples row counts and host memory into gauges.
type StatUpdater struct {
	db       *sql.DB
	interval time.Duration
	done     chan struct{}
}

// NewStatUpdater creates a new StatUpdater.
func NewStatUpdater(db *sql.DB, interval time.Duration) *StatUpdater {
	return &StatUpdater{
		db:       db,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Run starts the periodic updates. It blocks until Stop is called.
func (su *StatUpdater) Run() {
	log.Info().Dur("interval", su.interval).Msg("Starting background stat updater...")
	ticker := time.NewTicker(su.interval)
	defer ticker.Stop()

	// Run once immediately on start
	su.Sample(context.Background())

	for {
		select {
		case <-su.done:
			log.Info().Msg("Stopping background stat updater.")
			return
		case <-ticker.C:
			su.Sample(context.Background())
		}
	}
}

// Stop halts the periodic updates.
func (su *StatUpdater) Stop() {
	close(su.done)
}

// Sample refreshes every gauge once.
func (su *StatUpdater) Sample(ctx context.Context) {
	for _, table := range countedTables {
		var n int64
		// Table names come from the fixed list above.
		if err := su.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			log.Warn().Err(err).Str("table", table).Msg("StatUpdater: Failed to count rows")
			continue
		}
		metrics.StoredRows.WithLabelValues(table).Set(float64(n))
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("StatUpdater: Could not read host memory")
		return
	}
	metrics.HostMemoryUsedPercent.Set(vm.UsedPercent)
}
