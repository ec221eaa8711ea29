package resource

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/rickwporter/gointegration/framework"
	"github.com/rickwporter/gointegration/logging"
)

const mockShutdownTimeout = 5 * time.Second

// MockServiceSpec starts an in-process HTTP server that plays the role of
// an external dependency. Tests point the system under test at BaseURL and
// script the responses.
type MockServiceSpec struct {
	Name string
	// Host defaults to 127.0.0.1.
	Host string
	// Port defaults to 0, meaning an ephemeral port.
	Port      int
	Responses *Responses
}

func (s MockServiceSpec) Kind() string { return "mock-service" }

func (s MockServiceSpec) Describe() string {
	return fmt.Sprintf("mock service %s", s.Name)
}

func (s MockServiceSpec) Acquire(ctx context.Context, rc *framework.RunContext) (framework.ResourceHandle, error) {
	host := s.Host
	if host == "" {
		host = "127.0.0.1"
	}
	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, s.Port))
	if err != nil {
		return nil, errors.Wrapf(err, "could not listen for %s", s.Describe())
	}

	m := &MockService{
		name:       s.Name,
		baseURL:    "http://" + listener.Addr().String(),
		logger:     rc.Logger,
		responses:  s.Responses,
		requests:   make(map[string][]RecordedRequest),
		statistics: make(map[string]int),
		served:     make(map[string]int),
	}
	if m.responses == nil {
		m.responses = NewResponses("")
	}

	router := mux.NewRouter()
	router.HandleFunc("/{path:.*}", m.processRequest)
	m.server = &http.Server{Handler: router}
	go func() {
		if err := m.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rc.Logger.Printf("mock service %s stopped: %s", s.Name, err)
		}
	}()

	rc.Logger.Printf("mock service %s listening at %s", s.Name, m.baseURL)
	return m, nil
}

// RecordedRequest is one captured incoming request.
type RecordedRequest struct {
	Method  string
	Path    string
	Query   url.Values
	Headers http.Header
	Body    []byte
	Time    time.Time
}

// MockService is a live scripted HTTP server. All methods are safe for
// concurrent use; cases sharing one mock may hit it from parallel workers.
type MockService struct {
	name    string
	baseURL string
	logger  logging.Logger
	server  *http.Server

	lock       sync.Mutex
	responses  *Responses
	requests   map[string][]RecordedRequest
	statistics map[string]int
	served     map[string]int

	closeOnce sync.Once
	closeErr  error
}

func (m *MockService) Kind() string { return "mock-service" }

func (m *MockService) Name() string { return m.name }

// BaseURL is the root address of the mock service.
func (m *MockService) BaseURL() string { return m.baseURL }

// URL joins a path onto the base address.
func (m *MockService) URL(path string) string {
	return m.baseURL + "/" + strings.TrimLeft(path, "/")
}

// SetResponses replaces the whole routing table and clears the captured
// requests and serve counters.
func (m *MockService) SetResponses(r *Responses) {
	if r == nil {
		r = NewResponses("")
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	m.responses = r
	m.requests = make(map[string][]RecordedRequest)
	m.served = make(map[string]int)
}

// AddResponse registers one more response on the live service. Replacing a
// route restarts its Times budget.
func (m *MockService) AddResponse(path, method string, info ResponseInfo) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.responses.Add(path, method, info)
	delete(m.served, servedKey(m.responses.fullPath(path), method))
}

// Requests returns the captured requests for a path, oldest first. Only
// routes registered with Capture record anything.
func (m *MockService) Requests(path string) []RecordedRequest {
	m.lock.Lock()
	defer m.lock.Unlock()
	key := normalizePath(m.responses.fullPath(path))
	return append([]RecordedRequest(nil), m.requests[key]...)
}

// Statistics returns how many times each "METHOD path" was requested,
// including requests that got a 404.
func (m *MockService) Statistics() map[string]int {
	m.lock.Lock()
	defer m.lock.Unlock()
	out := make(map[string]int, len(m.statistics))
	for k, v := range m.statistics {
		out[k] = v
	}
	return out
}

// ResetStatistics clears the request counters.
func (m *MockService) ResetStatistics() {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.statistics = make(map[string]int)
}

func servedKey(path, method string) string {
	return strings.ToUpper(method) + " " + normalizePath(path)
}

func (m *MockService) processRequest(w http.ResponseWriter, req *http.Request) {
	path := mux.Vars(req)["path"]
	method := req.Method

	m.lock.Lock()
	m.statistics[method+" "+path]++
	info, pathKnown, ok := m.responses.lookup(path, method)
	if ok && info.Times.IsDefined() {
		key := servedKey(path, method)
		if m.served[key] >= info.Times.IntValue() {
			ok = false
		} else {
			m.served[key]++
		}
	}
	if ok && info.Capture {
		body, _ := io.ReadAll(req.Body)
		key := normalizePath(path)
		m.requests[key] = append(m.requests[key], RecordedRequest{
			Method:  method,
			Path:    path,
			Query:   req.URL.Query(),
			Headers: req.Header.Clone(),
			Body:    body,
			Time:    time.Now(),
		})
	}
	m.lock.Unlock()

	switch {
	case !pathKnown:
		m.logger.Printf("mock %s: %s %s -> unknown path", m.name, method, path)
		writeJSONError(w, http.StatusNotFound, fmt.Sprintf("No path for %s", path))
	case !ok:
		m.logger.Printf("mock %s: %s %s -> no %s handler", m.name, method, path, method)
		writeJSONError(w, http.StatusNotFound, fmt.Sprintf("No %s method for path %s", method, path))
	default:
		m.logger.Printf("mock %s: %s %s -> %d", m.name, method, path, info.status())
		info.serve(w, req)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := ldvalue.ObjectBuild().Set("error", ldvalue.String(message)).Build()
	_, _ = w.Write([]byte(body.JSONString()))
}

// Release shuts the server down, letting in-flight requests finish.
func (m *MockService) Release() error {
	m.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), mockShutdownTimeout)
		defer cancel()
		m.closeErr = m.server.Shutdown(ctx)
	})
	return m.closeErr
}

// Snapshot reports the traffic the mock saw: per-route counters plus any
// captured requests.
func (m *MockService) Snapshot() ([]framework.Artifact, error) {
	m.lock.Lock()
	stats := ldvalue.ObjectBuild()
	for k, v := range m.statistics {
		stats.Set(k, ldvalue.Int(v))
	}
	captured := ldvalue.ArrayBuild()
	for _, recs := range m.requests {
		for _, rec := range recs {
			captured.Add(ldvalue.ObjectBuild().
				Set("method", ldvalue.String(rec.Method)).
				Set("path", ldvalue.String(rec.Path)).
				Set("body", ldvalue.String(string(rec.Body))).
				Build())
		}
	}
	m.lock.Unlock()

	traffic := ldvalue.ObjectBuild().
		Set("statistics", stats.Build()).
		Set("requests", captured.Build()).
		Build()
	return []framework.Artifact{framework.JSONArtifact(m.name+"-traffic.json", traffic)}, nil
}
