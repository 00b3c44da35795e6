package checkout

import "time"

// SetNowFunc overrides the service clock; only available to tests.
func (s *Service) SetNowFunc(now func() time.Time) { s.now = now }
