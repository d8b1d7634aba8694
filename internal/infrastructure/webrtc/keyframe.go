package webrtc

import (
	"strings"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v3"
)

const (
	naluTypeIDR   = 5
	naluTypeSPS   = 7
	naluTypeSTAPA = 24
	naluTypeFUA   = 28
)

// IsKeyframe reports whether the packet starts a decodable picture for the given codec.
// Renderers hold a video view back until the first keyframe arrives.
func IsKeyframe(mimeType string, pkt *rtp.Packet) bool {
	if pkt == nil || len(pkt.Payload) == 0 {
		return false
	}

	switch {
	case strings.EqualFold(mimeType, webrtc.MimeTypeVP8):
		return isVP8Keyframe(pkt.Payload)
	case strings.EqualFold(mimeType, webrtc.MimeTypeVP9):
		return isVP9Keyframe(pkt.Payload)
	case strings.EqualFold(mimeType, webrtc.MimeTypeH264):
		return isH264Keyframe(pkt.Payload)
	}
	return false
}

func isVP8Keyframe(payload []byte) bool {
	var vp8 codecs.VP8Packet
	if _, err := vp8.Unmarshal(payload); err != nil {
		return false
	}
	// Start of partition 0, and the inverse key frame flag of the frame tag is clear.
	return vp8.S == 1 && vp8.PID == 0 && len(vp8.Payload) > 0 && vp8.Payload[0]&0x01 == 0
}

func isVP9Keyframe(payload []byte) bool {
	var vp9 codecs.VP9Packet
	if _, err := vp9.Unmarshal(payload); err != nil {
		return false
	}
	return vp9.B && !vp9.P
}

func isH264Keyframe(payload []byte) bool {
	switch nalu := payload[0] & 0x1F; nalu {
	case naluTypeIDR, naluTypeSPS:
		return true
	case naluTypeSTAPA:
		for i := 1; i+2 < len(payload); {
			size := int(payload[i])<<8 | int(payload[i+1])
			if size == 0 || i+2+size > len(payload) {
				return false
			}
			if t := payload[i+2] & 0x1F; t == naluTypeIDR || t == naluTypeSPS {
				return true
			}
			i += 2 + size
		}
	case naluTypeFUA:
		if len(payload) < 2 {
			return false
		}
		start := payload[1]&0x80 != 0
		return start && payload[1]&0x1F == naluTypeIDR
	}
	return false
}
