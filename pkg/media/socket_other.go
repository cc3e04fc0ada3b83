//go:build !linux

package media

import "net"

// setSockOptForVoice на прочих платформах оставляет настройки по умолчанию
func setSockOptForVoice(conn *net.UDPConn, dscp int) error {
	return nil
}
