package scraper

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/kballard/go-shellquote"
	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/logger"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// defaultWaitDelay bounds how long Wait blocks on output pipes after the
// process has been killed (orphaned grandchildren may hold them open).
const defaultWaitDelay = 2 * time.Second

// ProcessAcquirer runs one scraper process per acquisition.
type ProcessAcquirer struct {
	commands  map[domain.AcquisitionKind][]string
	env       []string
	waitDelay time.Duration
	logger    *zap.SugaredLogger
}

// NewProcessAcquirer builds an acquirer from shell-style command templates.
// The target URL is appended as the final argument.
func NewProcessAcquirer(productCommand, reviewsCommand string, logger *zap.SugaredLogger) (*ProcessAcquirer, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	commands := make(map[domain.AcquisitionKind][]string, 2)
	for kind, template := range map[domain.AcquisitionKind]string{
		domain.AcquireProduct: productCommand,
		domain.AcquireReviews: reviewsCommand,
	} {
		args, err := shellquote.Split(template)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s command %q", kind, template)
		}
		if len(args) == 0 {
			return nil, errors.Newf("%s command is empty", kind)
		}
		commands[kind] = args
	}

	return &ProcessAcquirer{
		commands:  commands,
		env:       os.Environ(),
		waitDelay: defaultWaitDelay,
		logger:    logger,
	}, nil
}

// Acquire starts the scraper for kind and waits for it to exit. When ctx ends
// first the process and all of its descendants are killed before returning.
func (a *ProcessAcquirer) Acquire(ctx context.Context, kind domain.AcquisitionKind, targetURL string) (*domain.AcquisitionOutput, error) {
	template, ok := a.commands[kind]
	if !ok {
		return nil, errors.Newf("no command configured for %s", kind)
	}

	args := append(append([]string{}, template[1:]...), targetURL)
	cmd := exec.CommandContext(ctx, template[0], args...)
	cmd.Env = a.env
	cmd.WaitDelay = a.waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	cmd.Cancel = func() error {
		return terminateTree(cmd.Process.Pid)
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "start %s scraper %s", kind, template[0])
	}

	out := &domain.AcquisitionOutput{PID: cmd.Process.Pid}
	waitErr := cmd.Wait()

	out.Stdout = stdout.Bytes()
	out.Stderr = stderr.Bytes()
	out.ExitCode = -1
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}

	// a clean exit that raced the deadline still counts
	exitedCleanly := cmd.ProcessState != nil && cmd.ProcessState.Success()
	if ctx.Err() != nil && !exitedCleanly {
		a.logger.Debugw("scraper terminated", logger.FieldKind, kind, "output", describeOutput(out))
		return out, ctx.Err()
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) && !errors.Is(waitErr, exec.ErrWaitDelay) {
		return out, errors.Wrapf(waitErr, "wait for %s scraper", kind)
	}

	a.logger.Debugw("scraper exited", logger.FieldKind, kind, "output", describeOutput(out))
	return out, nil
}

// terminateTree kills pid and every descendant it has spawned.
func terminateTree(pid int) error {
	root, err := process.NewProcess(int32(pid))
	if err != nil {
		// already gone
		return os.ErrProcessDone
	}

	var kill func(p *process.Process)
	kill = func(p *process.Process) {
		children, _ := p.Children()
		for _, child := range children {
			kill(child)
		}
		_ = p.Kill()
	}
	kill(root)
	return nil
}
