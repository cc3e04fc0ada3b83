package media

import (
	"fmt"
	"strings"
	"time"

	"github.com/pion/sdp/v3"
)

// DTMF событие нажатия клавиши
type DTMF struct {
	Digit    rune
	Duration time.Duration
	Source   string
}

// ValidDigit проверяет, что цифра входит в набор RFC 4733 (0-9 * # A-D)
func ValidDigit(d rune) bool {
	switch {
	case d >= '0' && d <= '9':
		return true
	case d == '*' || d == '#':
		return true
	case d >= 'A' && d <= 'D', d >= 'a' && d <= 'd':
		return true
	}
	return false
}

// DTMFType способ передачи DTMF, согласованный для сессии
type DTMFType int

const (
	DTMFTypeNone DTMFType = iota
	DTMFTypeRFC2833
	DTMFTypeInfo
	DTMFTypeInband
)

func (t DTMFType) String() string {
	switch t {
	case DTMFTypeNone:
		return "none"
	case DTMFTypeRFC2833:
		return "rfc2833"
	case DTMFTypeInfo:
		return "info"
	case DTMFTypeInband:
		return "inband"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// ParseDTMFType разбирает имя способа передачи
func ParseDTMFType(s string) (DTMFType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rfc2833", "rfc4733", "telephone-event":
		return DTMFTypeRFC2833, true
	case "info", "sip-info":
		return DTMFTypeInfo, true
	case "inband":
		return DTMFTypeInband, true
	case "none":
		return DTMFTypeNone, true
	}
	return DTMFTypeNone, false
}

// NegotiateDTMFType выбирает способ передачи DTMF.
// Явное предпочтение (переменная dtmf_type) имеет приоритет; иначе
// telephone-event в удаленном SDP дает RFC2833, без SDP - RFC2833 по
// умолчанию, SDP без telephone-event - INFO.
func NegotiateDTMFType(remote *sdp.SessionDescription, preferred string) DTMFType {
	if t, ok := ParseDTMFType(preferred); ok {
		return t
	}
	if remote == nil {
		return DTMFTypeRFC2833
	}
	if hasTelephoneEvent(remote) {
		return DTMFTypeRFC2833
	}
	return DTMFTypeInfo
}

func hasTelephoneEvent(sd *sdp.SessionDescription) bool {
	for _, md := range sd.MediaDescriptions {
		if md.MediaName.Media != "audio" {
			continue
		}
		for _, attr := range md.Attributes {
			if attr.Key != "rtpmap" {
				continue
			}
			if strings.Contains(strings.ToLower(attr.Value), "telephone-event/") {
				return true
			}
		}
	}
	return false
}
