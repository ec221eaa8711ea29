package resource

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/rickwporter/gointegration/framework"
	"github.com/rickwporter/gointegration/logging"
)

// containerRunLabel is set on every container we start, keyed to the run
// ID, so leftovers from an aborted run can be found and removed.
const containerRunLabel = "gointegration.run"

const containerReleaseTimeout = 30 * time.Second

// ContainerSpec launches a docker container for the duration of a case.
// The container name is qualified with the job ID so concurrent runs on
// one host cannot collide.
type ContainerSpec struct {
	Name  string
	Image string
	// Ports maps host ports to container ports.
	Ports map[int]int
	// Volumes maps host paths to container paths.
	Volumes map[string]string
	Env     map[string]string
	// Args are passed to the image entrypoint.
	Args  []string
	Probe Probe
	// Ready, when set, gates acquisition on the container being usable.
	Ready func(ctx context.Context, c *Container) bool
}

func (s ContainerSpec) Kind() string { return "container" }

func (s ContainerSpec) Describe() string {
	return fmt.Sprintf("container %s (image %s)", s.Name, s.Image)
}

func (s ContainerSpec) Acquire(ctx context.Context, rc *framework.RunContext) (framework.ResourceHandle, error) {
	if !ImageExists(ctx, s.Image) {
		return nil, errors.Errorf("image %s not found", s.Image)
	}

	name := rc.QualifyName(s.Name)
	result, err := Command{Path: "docker", Args: s.runArgs(name, rc.RunID), Logger: rc.Logger}.Run(ctx)
	if err != nil {
		return nil, err
	}
	if !result.OK() {
		return nil, errors.Errorf("could not start %s: %s", s.Describe(), strings.TrimSpace(result.Stderr))
	}

	c := &Container{
		name:   name,
		image:  s.Image,
		id:     strings.TrimSpace(result.Stdout),
		logger: rc.Logger,
	}
	if s.Ready != nil {
		err := WaitForReady(ctx, rc.Logger, s.Describe(), s.Probe, func(ctx context.Context) bool {
			return s.Ready(ctx, c)
		})
		if err != nil {
			_ = c.Release()
			return nil, err
		}
	}
	// Startup chatter is not interesting in a failure snapshot, so the log
	// position starts here.
	_ = c.MarkLogs(ctx)
	return c, nil
}

// runArgs builds the docker run command line. Map entries are emitted in
// sorted order to keep the command line stable.
func (s ContainerSpec) runArgs(name, runID string) []string {
	args := []string{"run", "--detach", "--name", name, "--label", containerRunLabel + "=" + runID}
	hostPorts := make([]int, 0, len(s.Ports))
	for hp := range s.Ports {
		hostPorts = append(hostPorts, hp)
	}
	sort.Ints(hostPorts)
	for _, hp := range hostPorts {
		args = append(args, "-p", fmt.Sprintf("%d:%d", hp, s.Ports[hp]))
	}
	hostPaths := make([]string, 0, len(s.Volumes))
	for hp := range s.Volumes {
		hostPaths = append(hostPaths, hp)
	}
	sort.Strings(hostPaths)
	for _, hp := range hostPaths {
		args = append(args, "-v", hp+":"+s.Volumes[hp])
	}
	envKeys := make([]string, 0, len(s.Env))
	for k := range s.Env {
		envKeys = append(envKeys, k)
	}
	sort.Strings(envKeys)
	for _, k := range envKeys {
		args = append(args, "-e", k+"="+s.Env[k])
	}
	args = append(args, s.Image)
	args = append(args, s.Args...)
	return args
}

// ImageExists reports whether the image is available locally.
func ImageExists(ctx context.Context, image string) bool {
	result, err := Command{Path: "docker", Args: []string{"image", "inspect", image}}.Run(ctx)
	return err == nil && result.OK()
}

// Container is a running docker container.
type Container struct {
	name   string
	image  string
	id     string
	logger logging.Logger

	lock        sync.Mutex
	lastLogSize int

	releaseOnce sync.Once
	releaseErr  error
}

func (c *Container) Kind() string { return "container" }

// Name is the qualified container name docker knows it by.
func (c *Container) Name() string { return c.name }

func (c *Container) ID() string { return c.id }

// Exec runs a command inside the container.
func (c *Container) Exec(ctx context.Context, argv ...string) (Result, error) {
	args := append([]string{"exec", c.name}, argv...)
	return Command{Path: "docker", Args: args, Logger: c.logger}.Run(ctx)
}

// Running reports whether docker still shows the container as running.
func (c *Container) Running(ctx context.Context) bool {
	cmd := Command{Path: "docker", Args: []string{"inspect", "--format", "{{.State.Running}}", c.name}}
	result, err := cmd.Run(ctx)
	return err == nil && result.OK() && strings.TrimSpace(result.Stdout) == "true"
}

// Logs returns the container's combined log output from the beginning.
func (c *Container) Logs(ctx context.Context) (string, error) {
	result, err := Command{Path: "docker", Args: []string{"logs", c.name}}.Run(ctx)
	if err != nil {
		return "", err
	}
	if !result.OK() {
		return "", errors.Errorf("could not read logs of %s: %s", c.name, strings.TrimSpace(result.Stderr))
	}
	return result.Stdout + result.Stderr, nil
}

// MarkLogs remembers the current log size so LogDiff reports only newer
// output.
func (c *Container) MarkLogs(ctx context.Context) error {
	logs, err := c.Logs(ctx)
	if err != nil {
		return err
	}
	c.lock.Lock()
	c.lastLogSize = len(logs)
	c.lock.Unlock()
	return nil
}

// LogDiff returns the log output written since the last MarkLogs, or all of
// it when MarkLogs was never called.
func (c *Container) LogDiff(ctx context.Context) (string, error) {
	logs, err := c.Logs(ctx)
	if err != nil {
		return "", err
	}
	c.lock.Lock()
	n := c.lastLogSize
	c.lock.Unlock()
	if n > len(logs) {
		n = 0
	}
	return logs[n:], nil
}

// Release force-removes the container. Removing one that is already gone is
// not an error.
func (c *Container) Release() error {
	c.releaseOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), containerReleaseTimeout)
		defer cancel()
		result, err := Command{Path: "docker", Args: []string{"rm", "--force", c.name}, Logger: c.logger}.Run(ctx)
		if err != nil {
			c.releaseErr = err
			return
		}
		if !result.OK() && !strings.Contains(result.Stderr, "No such container") {
			c.releaseErr = errors.Errorf("could not remove container %s: %s",
				c.name, strings.TrimSpace(result.Stderr))
		}
	})
	return c.releaseErr
}

// Snapshot captures the container's log output since the last MarkLogs.
func (c *Container) Snapshot() ([]framework.Artifact, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	diff, err := c.LogDiff(ctx)
	if err != nil {
		return nil, err
	}
	if diff == "" {
		return nil, nil
	}
	return []framework.Artifact{framework.TextArtifact(c.name+"-logs.txt", diff)}, nil
}

// SweepContainers force-removes every container labeled with the given run
// ID. It covers containers left behind when a run aborted before its
// release phase.
func SweepContainers(ctx context.Context, logger logging.Logger, runID string) error {
	filter := fmt.Sprintf("label=%s=%s", containerRunLabel, runID)
	list := Command{Path: "docker", Args: []string{"ps", "--all", "--quiet", "--filter", filter}, Logger: logger}
	result, err := list.Run(ctx)
	if err != nil {
		return err
	}
	if !result.OK() {
		return errors.Errorf("could not list containers: %s", strings.TrimSpace(result.Stderr))
	}
	ids := strings.Fields(result.Stdout)
	if len(ids) == 0 {
		return nil
	}
	logger.Printf("removing %d leftover container(s)", len(ids))
	result, err = Command{Path: "docker", Args: append([]string{"rm", "--force"}, ids...), Logger: logger}.Run(ctx)
	if err != nil {
		return err
	}
	if !result.OK() {
		return errors.Errorf("could not remove containers: %s", strings.TrimSpace(result.Stderr))
	}
	return nil
}
