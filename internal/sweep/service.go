package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lakshaymaurya-felt/winreclaim/internal/envutil"
	"github.com/lakshaymaurya-felt/winreclaim/internal/platform"
	"github.com/lakshaymaurya-felt/winreclaim/internal/ui"
)

// DefaultStopTimeout bounds the wait for one service to stop.
const DefaultStopTimeout = 15 * time.Second

// ServiceSweeper stops and deletes the target's services.
type ServiceSweeper struct {
	Env
	Services    platform.ServiceManager
	StopTimeout time.Duration
}

// Sweep deletes every matching, unprotected service. A service that will
// not stop is still marked for deletion; the manager removes it once its
// last handle closes.
func (s *ServiceSweeper) Sweep(ctx context.Context) (Result, error) {
	var res Result
	services, err := s.Services.List(ctx)
	if err != nil {
		return res, fmt.Errorf("list services: %w", err)
	}

	timeout := s.StopTimeout
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}
	for _, svc := range services {
		if !s.Terms.MatchAny(svc.Name, svc.DisplayName, svc.BinaryPath) {
			continue
		}
		binary := envutil.ExpandWindowsEnv(svc.BinaryPath)
		if s.Oracle.IsProtectedService(svc.Name, binary) {
			s.log().WithField("service", svc.Name).Debug("protected service skipped")
			continue
		}
		res.addDir(s.installDir(binary))
		if s.dryRun("service %s (%s)", svc.Name, svc.DisplayName) {
			continue
		}

		stopCtx, cancel := s.Deadline.Bound(ctx, timeout)
		err := s.Services.Stop(stopCtx, svc.Name)
		cancel()
		if err != nil && !errors.Is(err, platform.ErrNotFound) {
			s.log().WithError(err).WithField("service", svc.Name).Warn("service did not stop")
		}

		if err := s.Services.Delete(ctx, svc.Name); err != nil {
			s.failed(err, "service", svc.Name)
			continue
		}
		s.Stats.ServicesDeleted.Add(1)
		res.Count++
		s.Reporter.Tag(ui.TagService, "%s", svc.Name)
		s.log().WithField("service", svc.Name).Info("service deleted")
	}
	return res, nil
}
