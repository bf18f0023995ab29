package ports

import (
	"net"

	"github.com/pkg/errors"
)

// Free asks the kernel for an unused local TCP port. The listener is
// closed before returning, so the port can be handed to a freshly
// spawned process; the fork to listen race is absorbed by the liveness
// probe retry budget.
func Free() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, errors.Wrap(err, "failed to allocate local port")
	}
	defer l.Close()

	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0, errors.New("listener did not yield a tcp address")
	}
	return addr.Port, nil
}
