package media

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pion/sdp/v3"
)

// ParseSessionDescription разбирает SDP удаленной стороны
func ParseSessionDescription(raw string) (*sdp.SessionDescription, error) {
	sd := &sdp.SessionDescription{}
	if err := sd.Unmarshal([]byte(raw)); err != nil {
		return nil, WrapMediaError(ErrorCodeSDPInvalid, "", "ошибка разбора SDP", err)
	}
	return sd, nil
}

// LocalDescription формирует SDP offer по потокам handle
func (h *Handle) LocalDescription() (*sdp.SessionDescription, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.destroyed {
		return nil, streamError(ErrorCodeClosed, h.sessionID, TypeAudio, "handle уничтожен", nil)
	}

	ip := h.params.LocalIP
	if ip == "" {
		ip = "127.0.0.1"
	}

	offer := &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      uint64(time.Now().UnixNano()),
			SessionVersion: 1,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: ip,
		},
		SessionName: sdp.SessionName("echo " + h.sessionID),
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &sdp.Address{Address: ip},
		},
		TimeDescriptions: []sdp.TimeDescription{
			{Timing: sdp.Timing{StartTime: 0, StopTime: 0}},
		},
	}

	for _, t := range Types {
		stream, ok := h.streams[t]
		if !ok {
			continue
		}
		offer.MediaDescriptions = append(offer.MediaDescriptions, h.mediaDescription(stream, ip))
	}
	return offer, nil
}

func (h *Handle) mediaDescription(stream *Stream, ip string) *sdp.MediaDescription {
	codec := stream.codec
	formats := []string{strconv.Itoa(int(codec.PayloadType))}
	withDTMF := stream.typ == TypeAudio && h.dtmfType == DTMFTypeRFC2833
	if withDTMF {
		formats = append(formats, strconv.Itoa(int(h.params.DTMFPayloadType)))
	}

	port := 9
	if addr := stream.LocalPort(); addr > 0 {
		port = addr
	}

	md := &sdp.MediaDescription{
		MediaName: sdp.MediaName{
			Media:   stream.typ.String(),
			Port:    sdp.RangedPort{Value: port},
			Protos:  []string{"RTP", "AVP"},
			Formats: formats,
		},
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &sdp.Address{Address: ip},
		},
	}

	md.Attributes = append(md.Attributes, sdp.Attribute{
		Key:   "rtpmap",
		Value: fmt.Sprintf("%d %s/%d", codec.PayloadType, codec.Name, codec.ClockRate),
	})
	if withDTMF {
		md.Attributes = append(md.Attributes,
			sdp.Attribute{Key: "rtpmap", Value: fmt.Sprintf("%d telephone-event/8000", h.params.DTMFPayloadType)},
			sdp.Attribute{Key: "fmtp", Value: fmt.Sprintf("%d 0-15", h.params.DTMFPayloadType)},
		)
	}
	if stream.typ == TypeAudio {
		md.Attributes = append(md.Attributes, sdp.Attribute{
			Key:   "ptime",
			Value: strconv.Itoa(int(h.params.PTime / time.Millisecond)),
		})
	}
	md.Attributes = append(md.Attributes, sdp.Attribute{Key: "sendrecv"})
	return md
}
