//go:build !unix

package adapter

import "syscall"

func listenControl(_, _ string, _ syscall.RawConn) error {
	return nil
}
