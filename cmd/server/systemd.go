package main

import (
	"net"
	"os"
	"strings"

	"github.com/lamgaraproperties/lamgara-web/internal/xerrors"
)

const (
	sdReady    = "READY=1"
	sdStopping = "STOPPING=1"
)

// notifySystemd sends state to the service manager of a Type=notify unit.
// Outside systemd it does nothing.
func notifySystemd(state string) error {
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return nil
	}
	// abstract namespace sockets are announced with a leading '@'
	if strings.HasPrefix(addr, "@") {
		addr = "\x00" + addr[1:]
	}
	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: addr, Net: "unixgram"})
	if err != nil {
		return xerrors.Wrapf(err, "systemd notify %s", state)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(state)); err != nil {
		return xerrors.Wrapf(err, "systemd notify %s", state)
	}
	return nil
}
