package resource

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/rickwporter/gointegration/framework"
	"github.com/rickwporter/gointegration/logging"
)

// DefaultGracePeriod is how long Release waits for a process to exit after
// SIGTERM before killing it.
const DefaultGracePeriod = 5 * time.Second

// ProcessSpec launches a helper program in the background for the duration
// of a case. Its output is collected line by line and becomes a diagnostic
// artifact when the case fails.
type ProcessSpec struct {
	Name string
	Path string
	Args []string
	Dir  string
	// Env entries are appended to the current environment.
	Env []string
	// ReadyURL, when set, is polled until it answers; otherwise the process
	// counts as ready as soon as it starts.
	ReadyURL string
	Probe    Probe
	// GracePeriod overrides DefaultGracePeriod for release.
	GracePeriod time.Duration
}

func (s ProcessSpec) Kind() string { return "process" }

func (s ProcessSpec) Describe() string {
	return fmt.Sprintf("process %s (%s)", s.Name, s.Path)
}

func (s ProcessSpec) Acquire(ctx context.Context, rc *framework.RunContext) (framework.ResourceHandle, error) {
	cmd := exec.Command(s.Path, s.Args...)
	cmd.Dir = s.Dir
	if len(s.Env) > 0 {
		cmd.Env = append(os.Environ(), s.Env...)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrapf(err, "could not start %s", s.Name)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.Wrapf(err, "could not start %s", s.Name)
	}

	grace := s.GracePeriod
	if grace == 0 {
		grace = DefaultGracePeriod
	}
	p := &Process{name: s.Name, grace: grace, done: make(chan struct{})}

	rc.Logger.Printf("starting process %s: %s", s.Name, QuoteCommand(s.Path, s.Args...))
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "could not start %s", s.Name)
	}
	p.cmd = cmd

	var scanners sync.WaitGroup
	scanners.Add(2)
	go p.scan(stdout, &scanners)
	go p.scan(stderr, &scanners)
	go func() {
		// the pipes must be drained before Wait is allowed to close them
		scanners.Wait()
		p.waitErr = cmd.Wait()
		close(p.done)
	}()

	if s.ReadyURL != "" {
		// give up on the readiness poll as soon as the process dies
		waitCtx, cancel := context.WithCancel(ctx)
		go func() {
			select {
			case <-p.done:
				cancel()
			case <-waitCtx.Done():
			}
		}()
		client := &http.Client{Timeout: DefaultRequestTimeout}
		err := WaitForReady(waitCtx, rc.Logger, s.Describe(), s.Probe, func(ctx context.Context) bool {
			return checkHTTP(ctx, client, s.ReadyURL)
		})
		cancel()
		if err != nil {
			_ = p.Release()
			return nil, err
		}
	}
	return p, nil
}

// Process is a running background program.
type Process struct {
	name     string
	cmd      *exec.Cmd
	output   logging.CapturingLogger
	done     chan struct{}
	waitErr  error
	grace    time.Duration
	stopOnce sync.Once
}

func (p *Process) Kind() string { return "process" }

func (p *Process) Name() string { return p.name }

// Running reports whether the process has exited yet.
func (p *Process) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Output returns everything the process has written so far, timestamped
// line by line.
func (p *Process) Output() logging.CapturedOutput {
	return p.output.Output()
}

func (p *Process) scan(r io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		p.output.Printf("%s", scanner.Text())
	}
}

// Release stops the process: SIGTERM first, then SIGKILL when the grace
// period runs out. Releasing an already-exited process is a no-op.
func (p *Process) Release() error {
	p.stopOnce.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}
		_ = p.cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-p.done:
		case <-time.After(p.grace):
			_ = p.cmd.Process.Kill()
			<-p.done
		}
	})
	return nil
}

// Snapshot packages the collected output for a test report.
func (p *Process) Snapshot() ([]framework.Artifact, error) {
	output := p.output.Output()
	if len(output) == 0 {
		return nil, nil
	}
	return []framework.Artifact{framework.TextArtifact(p.name+".log", output.String())}, nil
}
