package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/sensorhub-io/sensorhub/internal/engine"
	"github.com/sensorhub-io/sensorhub/pkg/metrics"
)

const defaultBufferSize = 1024

// Recorder implements engine.ReadingSink by writing accepted readings to
// PostgreSQL from a background goroutine. Record never blocks ingestion:
// when the buffer is full the reading is dropped and counted.
type Recorder struct {
	logger  *slog.Logger
	db      *gorm.DB
	records chan engine.ReadingRecord
	metrics *metrics.ArchiveMetrics // Optional metrics
	done    chan struct{}
}

// RecorderConfig holds the configuration for the Recorder.
type RecorderConfig struct {
	Logger *slog.Logger
	DB     *gorm.DB

	// BufferSize is the number of readings held while the writer catches
	// up. Defaults to 1024.
	BufferSize int

	// Metrics, when set, instruments archive writes.
	Metrics *metrics.ArchiveMetrics
}

// NewRecorder creates a new Recorder instance.
func NewRecorder(cfg *RecorderConfig) (*Recorder, error) {
	if cfg == nil {
		return nil, errors.New("recorder config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.DB == nil {
		return nil, errors.New("database cannot be nil")
	}

	size := cfg.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}

	return &Recorder{
		logger:  cfg.Logger,
		db:      cfg.DB,
		records: make(chan engine.ReadingRecord, size),
		metrics: cfg.Metrics,
		done:    make(chan struct{}),
	}, nil
}

// Start launches the background writer.
func (r *Recorder) Start(ctx context.Context) {
	r.logger.Info("starting archive recorder")
	go r.writeLoop(ctx)
}

// Record queues a reading for archiving. Safe to call concurrently.
func (r *Recorder) Record(rec engine.ReadingRecord) {
	select {
	case r.records <- rec:
	default:
		if r.metrics != nil {
			r.metrics.ReadingsDropped.Inc()
		}
		r.logger.Warn("archive buffer full, dropping reading",
			"sensor_id", rec.SensorID,
		)
	}
}

func (r *Recorder) writeLoop(ctx context.Context) {
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			r.drain()
			r.logger.Info("context canceled, archive recorder stopping")
			return

		case rec, ok := <-r.records:
			if !ok {
				return
			}
			r.write(ctx, rec)
		}
	}
}

// drain writes whatever is still buffered before shutdown.
func (r *Recorder) drain() {
	for {
		select {
		case rec := <-r.records:
			r.write(context.Background(), rec)
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, rec engine.ReadingRecord) {
	var timer *prometheus.Timer
	if r.metrics != nil {
		timer = prometheus.NewTimer(r.metrics.WriteDuration)
	}

	err := r.saveReading(ctx, rec)
	if timer != nil {
		timer.ObserveDuration()
	}

	if err != nil {
		if r.metrics != nil {
			r.metrics.WriteFailures.Inc()
		}
		r.logger.Error("failed to archive reading",
			"sensor_id", rec.SensorID,
			"error", err,
		)
		return
	}

	if r.metrics != nil {
		r.metrics.ReadingsArchived.Inc()
	}
}

func (r *Recorder) saveReading(ctx context.Context, rec engine.ReadingRecord) error {
	row := &ArchivedReading{
		Timestamp:  rec.Timestamp,
		SensorID:   rec.SensorID,
		SensorName: rec.SensorName,
		DeviceID:   rec.DeviceID,
		DeviceName: rec.DeviceName,
		Value:      rec.Value,
		Unit:       rec.Unit,
		Accuracy:   rec.Quality.Accuracy,
		Confidence: rec.Quality.Confidence,
		Valid:      rec.Quality.Validity,
	}

	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}

	if err := r.upsertDevice(ctx, rec); err != nil {
		return err
	}

	return nil
}

// upsertDevice keeps the archived device row current. A reading can arrive
// for the same device many times, so create-if-absent then refresh.
func (r *Recorder) upsertDevice(ctx context.Context, rec engine.ReadingRecord) error {
	row := &ArchivedDevice{
		DeviceID: rec.DeviceID,
		Name:     rec.DeviceName,
		LastSeen: rec.Timestamp,
	}

	result := r.db.WithContext(ctx).
		Where("device_id = ?", row.DeviceID).
		Assign(map[string]interface{}{
			"name":      row.Name,
			"last_seen": row.LastSeen,
		}).
		FirstOrCreate(row)

	if result.Error != nil {
		return fmt.Errorf("failed to upsert device: %w", result.Error)
	}

	return nil
}

// Stop closes the intake channel and waits for buffered readings to flush.
func (r *Recorder) Stop() {
	r.logger.Info("stopping archive recorder")
	close(r.records)
	<-r.done
	r.logger.Info("archive recorder stopped")
}

var _ engine.ReadingSink = (*Recorder)(nil)
