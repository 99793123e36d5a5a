package reminder

import "context"

// Permission returns the last known native notification permission.
func (s *Scheduler) Permission() Permission {
	s.permMu.Lock()
	defer s.permMu.Unlock()
	return s.permission
}

func (s *Scheduler) setPermission(p Permission) {
	s.permMu.Lock()
	s.permission = p
	s.permMu.Unlock()
}

func (s *Scheduler) refreshPermission(ctx context.Context) Permission {
	if s.platform == nil {
		return s.Permission()
	}
	p, err := s.platform.QueryPermission(ctx)
	if err != nil {
		s.logger.Warn("query notification permission", "err", err)
		return s.Permission()
	}
	s.setPermission(p)
	return p
}

// RequestPermission asks for permission to show native notifications and
// reports whether it was granted. A previous denial is final: the user is not
// prompted again. Otherwise the explanatory prompt is shown first, and the
// platform dialog only follows if the user accepts it.
//
// Concurrent calls share one in-flight request and all receive its result;
// the first caller's ctx governs that request.
func (s *Scheduler) RequestPermission(ctx context.Context) bool {
	if s.platform == nil {
		s.logger.Warn("native notifications are not supported")
		return false
	}
	v, _, _ := s.permGroup.Do("permission", func() (any, error) {
		return s.requestPermission(ctx), nil
	})
	return v.(bool)
}

func (s *Scheduler) requestPermission(ctx context.Context) bool {
	switch s.refreshPermission(ctx) {
	case PermissionGranted:
		return true
	case PermissionDenied:
		s.logger.Warn("notification permission was denied; enable it in system settings to receive reminders")
		return false
	}

	if s.prompter != nil {
		ok, err := s.prompter.Confirm(ctx)
		if err != nil {
			s.logger.Warn("permission prompt", "err", err)
			return false
		}
		if !ok {
			s.logger.Info("notification prompt declined")
			return false
		}
	}

	p, err := s.platform.RequestPermission(ctx)
	if err != nil {
		s.logger.Warn("request notification permission", "err", err)
		return false
	}
	s.setPermission(p)
	s.logger.Info("notification permission", "state", p)
	return p == PermissionGranted
}

// RevokePermission turns native notifications off. The permission goes back
// to default, so a later RequestPermission prompts again.
func (s *Scheduler) RevokePermission(ctx context.Context) error {
	r, ok := s.platform.(Revoker)
	if !ok {
		return ErrRevokeUnsupported
	}
	if err := r.RevokePermission(ctx); err != nil {
		return err
	}
	s.refreshPermission(ctx)
	s.logger.Info("notification permission revoked")
	return nil
}
