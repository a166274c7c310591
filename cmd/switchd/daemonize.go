package main

import (
	"fmt"
	"net"
	"os"
	"os/exec"
)

// reexecEnv marks a re-executed child as the daemonized instance, carrying
// the already-bound listener on fd 3 (the first entry of ExtraFiles).
const reexecEnv = "SWITCHD_DAEMON_CHILD=1"

// daemonize implements §6's "bind-then-daemonize ordering ... so
// concurrent clients do not observe connection-refused between fork and
// listen": it is handed ln already bound by run, then — if the parent
// is not already the re-executed child — spawns a detached copy of the
// current binary, hands it the open listener by file descriptor, writes
// pidfile with the child's PID, and exits the parent. Go has no usable
// fork(2) (goroutine schedulers and a forked single thread don't mix), so
// this re-exec-with-inherited-fd is the standard substitute.
func daemonize(ln *net.TCPListener, pidfile string) error {
	if os.Getenv("SWITCHD_DAEMON_CHILD") == "1" {
		// Already the detached child: just record our own pid.
		return writePIDFile(pidfile, os.Getpid())
	}

	lf, err := ln.File()
	if err != nil {
		return fmt.Errorf("daemonize: dup listener: %w", err)
	}
	defer lf.Close()

	cmd := exec.Command(os.Args[0], os.Args[1:]...)
	cmd.Env = append(os.Environ(), reexecEnv)
	cmd.ExtraFiles = []*os.File{lf}
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("daemonize: start child: %w", err)
	}

	if err := writePIDFile(pidfile, cmd.Process.Pid); err != nil {
		return err
	}

	os.Exit(0)
	return nil // unreachable
}

// inheritedListener recovers the listener the parent passed on fd 3 when
// this process is the re-executed daemon child.
func inheritedListener() (*net.TCPListener, error) {
	f := os.NewFile(3, "switchd-listener")
	conn, err := net.FileListener(f)
	if err != nil {
		return nil, fmt.Errorf("daemonize: recover inherited listener: %w", err)
	}
	ln, ok := conn.(*net.TCPListener)
	if !ok {
		return nil, fmt.Errorf("daemonize: inherited listener is not TCP")
	}
	return ln, nil
}

func writePIDFile(path string, pid int) error {
	if path == "" {
		return nil
	}
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", pid)), 0o644); err != nil {
		return fmt.Errorf("daemonize: write pidfile %s: %w", path, err)
	}
	return nil
}
