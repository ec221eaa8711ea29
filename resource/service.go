package resource

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rickwporter/gointegration/framework"
)

// ServiceSpec declares a dependency on an HTTP service that is already
// running outside the test run's control. Acquisition verifies the service
// answers; release leaves it alone.
type ServiceSpec struct {
	Name  string
	URL   string
	Probe Probe
}

func (s ServiceSpec) Kind() string { return "service" }

func (s ServiceSpec) Describe() string {
	return fmt.Sprintf("service %s at %s", s.Name, s.URL)
}

func (s ServiceSpec) Acquire(ctx context.Context, rc *framework.RunContext) (framework.ResourceHandle, error) {
	client := &http.Client{Timeout: DefaultRequestTimeout}
	err := WaitForReady(ctx, rc.Logger, s.Describe(), s.Probe, func(ctx context.Context) bool {
		return checkHTTP(ctx, client, s.URL)
	})
	if err != nil {
		return nil, err
	}
	return &Service{name: s.Name, url: s.URL}, nil
}

// checkHTTP reports whether url answers at all. Any response below 500
// counts; the service may well return 404 for its root path.
func checkHTTP(ctx context.Context, client *http.Client, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode < 500
}

// Service is an external service that answered its readiness probe.
type Service struct {
	name string
	url  string
}

func (s *Service) Kind() string { return "service" }

func (s *Service) Name() string { return s.name }

// URL is the address the readiness probe verified.
func (s *Service) URL() string { return s.url }

// Release does nothing; the service was never ours to stop.
func (s *Service) Release() error { return nil }
