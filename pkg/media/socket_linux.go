//go:build linux

package media

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// setSockOptForVoice применяет настройки сокета для голосового трафика (Linux)
func setSockOptForVoice(conn *net.UDPConn, dscp int) error {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("не удалось получить системный сокет: %w", err)
	}

	var sockOptErr error
	err = rawConn.Control(func(fd uintptr) {
		sockOptErr = applySockOptForVoice(int(fd), dscp)
	})
	if err != nil {
		return fmt.Errorf("ошибка управления сокетом: %w", err)
	}
	return sockOptErr
}

func applySockOptForVoice(fd, dscp int) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fmt.Errorf("SO_REUSEADDR: %w", err)
	}

	// Приоритет 6 - интерактивное аудио; в контейнерах может быть запрещен
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_PRIORITY, 6)

	if dscp > 0 {
		// DSCP находится в старших 6 битах TOS
		tos := dscp << 2
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_TOS, tos); err != nil {
			return fmt.Errorf("IP_TOS: %w", err)
		}
	}
	return nil
}
