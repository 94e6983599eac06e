package services

import (
	"os"

	"github.com/pkg/errors"
)

// HealthService reports whether the lead store's backing directory is
// usable. Redis and the provider are best-effort dependencies, so they
// do not gate health.
type HealthService struct {
	leadsDir string
}

func NewHealthService(leadsDir string) *HealthService {
	return &HealthService{leadsDir: leadsDir}
}

func (h *HealthService) Get() error {
	info, err := os.Stat(h.leadsDir)
	if err != nil {
		return errors.Wrap(err, "leads directory is not available")
	}
	if !info.IsDir() {
		return errors.New("leads path is not a directory")
	}
	return nil
}
