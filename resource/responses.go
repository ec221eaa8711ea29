package resource

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// ResponseInfo describes one canned response a mock service serves for a
// particular path and method.
type ResponseInfo struct {
	// Status defaults to 200.
	Status  int
	Headers http.Header
	// Body is rendered as JSON unless FilePath is set.
	Body ldvalue.Value
	// ContentType defaults to application/json.
	ContentType string
	// FilePath, when set, serves the file's contents as the body. The file
	// is read on every request so tests can rewrite it between calls.
	FilePath string
	// Capture records incoming requests for later inspection.
	Capture bool
	// Delay postpones the response, for latency and timeout tests.
	Delay time.Duration
	// Times limits how often this response is served; once spent, the mock
	// answers as if the route were never registered. Undefined means
	// unlimited.
	Times ldvalue.OptionalInt
}

func (r ResponseInfo) status() int {
	if r.Status == 0 {
		return http.StatusOK
	}
	return r.Status
}

func (r ResponseInfo) headers() http.Header {
	headers := make(http.Header)
	for k, vv := range r.Headers {
		headers[k] = append([]string(nil), vv...)
	}
	if headers.Get("Content-Type") == "" {
		contentType := r.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		headers.Set("Content-Type", contentType)
	}
	return headers
}

// serve writes the canned response.
func (r ResponseInfo) serve(w http.ResponseWriter, req *http.Request) {
	if r.Delay > 0 {
		select {
		case <-time.After(r.Delay):
		case <-req.Context().Done():
			return
		}
	}
	if r.FilePath != "" {
		data, err := os.ReadFile(r.FilePath)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		headers := r.headers()
		for k, vv := range headers {
			w.Header()[k] = vv
		}
		w.WriteHeader(r.status())
		_, _ = w.Write(data)
		return
	}
	var body []byte
	if !r.Body.IsNull() {
		body = []byte(r.Body.JSONString())
	}
	httphelpers.HandlerWithResponse(r.status(), r.headers(), body).ServeHTTP(w, req)
}

// Responses is the routing table of a mock service: path to method to
// response. Paths match case-insensitively and ignore leading and trailing
// slashes.
type Responses struct {
	basePath string
	byPath   map[string]map[string]ResponseInfo
}

// NewResponses creates an empty table. A non-empty basePath prefixes every
// path added later, so suites for one API can register bare endpoint names.
func NewResponses(basePath string) *Responses {
	return &Responses{
		basePath: strings.Trim(basePath, "/"),
		byPath:   make(map[string]map[string]ResponseInfo),
	}
}

func normalizePath(path string) string {
	return strings.ToLower(strings.Trim(path, "/"))
}

// fullPath prefixes the base path unless the given path already carries it.
func (r *Responses) fullPath(path string) string {
	path = strings.Trim(path, "/")
	if r.basePath == "" || strings.HasPrefix(path, r.basePath) {
		return path
	}
	return r.basePath + "/" + path
}

// Add registers a response, replacing any previous one for the same path
// and method. It returns the table so registrations can be chained.
func (r *Responses) Add(path, method string, info ResponseInfo) *Responses {
	key := normalizePath(r.fullPath(path))
	methods := r.byPath[key]
	if methods == nil {
		methods = make(map[string]ResponseInfo)
		r.byPath[key] = methods
	}
	methods[strings.ToUpper(method)] = info
	return r
}

// lookup finds the response for a request. pathKnown distinguishes an
// unknown path from a known path with no handler for the method, so the
// two cases can be reported differently.
func (r *Responses) lookup(path, method string) (info ResponseInfo, pathKnown, ok bool) {
	methods, pathKnown := r.byPath[normalizePath(path)]
	if !pathKnown {
		return ResponseInfo{}, false, false
	}
	info, ok = methods[strings.ToUpper(method)]
	return info, true, ok
}
