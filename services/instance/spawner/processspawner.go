package spawner

import (
	"context"
	"net"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/magictoy/arachni/pkg/generators"
	"github.com/magictoy/arachni/scan"
)

// ProcessSpawner forks detached copies of the instance binary. Children
// get a clean configuration namespace: only APP_ADDR and APP_TOKEN plus
// the bare process environment, so no dispatcher or pool settings leak
// from the parent.
type ProcessSpawner struct {
	binary string
	host   string
	log    zerolog.Logger
}

type ProcessSpawnerOption func(*ProcessSpawner)

func WithSpawnLogger(log zerolog.Logger) ProcessSpawnerOption {
	return func(s *ProcessSpawner) { s.log = log }
}

func WithSpawnHost(host string) ProcessSpawnerOption {
	return func(s *ProcessSpawner) { s.host = host }
}

func NewProcessSpawner(binary string, opts ...ProcessSpawnerOption) *ProcessSpawner {
	s := &ProcessSpawner{binary: binary, host: "127.0.0.1", log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ProcessSpawner) Spawn(ctx context.Context, port int, token string) (*Worker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(s.host, strconv.Itoa(port))
	cmd := exec.Command(s.binary)
	cmd.Env = []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + os.Getenv("HOME"),
		"APP_ADDR=" + addr,
		"APP_TOKEN=" + token,
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "failed to fork instance process")
	}

	worker := &Worker{
		ID:         generators.WorkerID(),
		PID:        cmd.Process.Pid,
		Descriptor: &scan.SlaveDescriptor{URL: addr, Token: token},
		StartTime:  time.Now().UnixNano(),
	}

	if err := cmd.Process.Release(); err != nil {
		return nil, errors.Wrap(err, "failed to detach instance process")
	}

	s.log.Info().Str("worker", worker.ID).Int("pid", worker.PID).Str("addr", addr).Msg("spawned instance")
	return worker, nil
}

// Kill force-stops a spawned worker, used when its liveness probe fails.
func (s *ProcessSpawner) Kill(worker *Worker) error {
	proc, err := os.FindProcess(worker.PID)
	if err != nil {
		return errors.Wrapf(err, "worker %s not found", worker.ID)
	}
	return proc.Kill()
}
