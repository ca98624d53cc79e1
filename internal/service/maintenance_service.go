package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sekolahku/sims-api/pkg/config"
	"github.com/sekolahku/sims-api/pkg/jobs"
)

// Job types handled by the maintenance queue.
const (
	JobAdmissionStaleScan = "admission_stale_scan"
	JobFeeOverdueScan     = "fee_overdue_scan"
)

type admissionScanner interface {
	StaleScan(ctx context.Context, reviewWindow time.Duration) (int, error)
}

type feeScanner interface {
	OverdueScan(ctx context.Context) (int64, error)
}

// MaintenanceService dispatches scheduled background jobs to the admission
// and fee services.
type MaintenanceService struct {
	admissions admissionScanner
	fees       feeScanner
	cfg        config.AdmissionsConfig
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewMaintenanceService constructs MaintenanceService.
func NewMaintenanceService(admissions admissionScanner, fees feeScanner, cfg config.AdmissionsConfig, metrics *MetricsService, logger *zap.Logger) *MaintenanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintenanceService{admissions: admissions, fees: fees, cfg: cfg, metrics: metrics, logger: logger}
}

// Handle routes one queued job to its scan.
func (s *MaintenanceService) Handle(ctx context.Context, job jobs.Job) error {
	started := time.Now()
	var err error

	switch job.Type {
	case JobAdmissionStaleScan:
		window := time.Duration(s.cfg.ReviewWindowDays) * 24 * time.Hour
		var flagged int
		flagged, err = s.admissions.StaleScan(ctx, window)
		if err == nil {
			s.logger.Info("admission stale scan finished",
				zap.String("job_id", job.ID),
				zap.Int("flagged", flagged))
		}
	case JobFeeOverdueScan:
		var flagged int64
		flagged, err = s.fees.OverdueScan(ctx)
		if err == nil {
			s.logger.Info("fee overdue scan finished",
				zap.String("job_id", job.ID),
				zap.Int64("flagged", flagged))
		}
	default:
		return fmt.Errorf("unknown maintenance job type %q", job.Type)
	}

	s.metrics.ObserveJob(job.Type, time.Since(started))
	return err
}
