package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/riskibarqy/live-links/internal/platform/logging"
	"github.com/riskibarqy/live-links/internal/usecase"
)

const (
	JobScanAssign  = "scan-assign"
	JobHealthCheck = "health-check"
)

type Scanner interface {
	Scan(ctx context.Context) (usecase.ScanResult, error)
}

type Assigner interface {
	Assign(ctx context.Context) (usecase.AssignResult, error)
}

type HealthChecker interface {
	Check(ctx context.Context) (usecase.HealthResult, error)
}

// ScanAssignJob refreshes the candidate pool and then assigns links for the
// configured leagues. A failed scan skips assignment for that tick.
func ScanAssignJob(schedule string, timeout time.Duration, scanner Scanner, assigner Assigner, logger *logging.Logger) Job {
	if logger == nil {
		logger = logging.Default()
	}
	return Job{
		Name:     JobScanAssign,
		Schedule: schedule,
		Timeout:  timeout,
		Run: func(ctx context.Context) error {
			scan, err := scanner.Scan(ctx)
			if err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			logger.InfoContext(ctx, "scheduled scan done",
				"generation", scan.Generation,
				"candidates", scan.Count,
				"source_errors", len(scan.Errors),
			)

			assign, err := assigner.Assign(ctx)
			if err != nil {
				return fmt.Errorf("assign: %w", err)
			}
			logger.InfoContext(ctx, "scheduled assign done",
				"assigned", assign.TotalAssigned,
				"created", assign.Created,
				"skipped", assign.Skipped,
				"leagues", assign.LeaguesScanned,
				"league_errors", len(assign.Errors),
			)
			return nil
		},
	}
}

func HealthCheckJob(schedule string, timeout time.Duration, checker HealthChecker, logger *logging.Logger) Job {
	if logger == nil {
		logger = logging.Default()
	}
	return Job{
		Name:     JobHealthCheck,
		Schedule: schedule,
		Timeout:  timeout,
		Run: func(ctx context.Context) error {
			result, err := checker.Check(ctx)
			if err != nil {
				return fmt.Errorf("health check: %w", err)
			}
			logger.InfoContext(ctx, "scheduled health check done",
				"tested", result.Tested,
				"working", result.Working,
				"cleaned", result.Cleaned,
				"removed", result.Removed,
				"expired_removed", result.ExpiredRemoved,
				"errors", len(result.Errors),
			)
			return nil
		},
	}
}
