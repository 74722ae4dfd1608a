package audio

import (
	"encoding/binary"
	"strconv"
	"strings"
	"time"
)

const (
	// WireSampleRate is the rate outbound PCM16 is sent at.
	WireSampleRate = 16000
	// OutputSampleRate is the rate the message-oriented provider streams audio back at.
	OutputSampleRate = 24000
	// OpusSampleRate is the RTP clock rate of the peer-connection media track.
	OpusSampleRate = 48000
)

// EncodePCM16 converts float samples in [-1, 1] to signed 16-bit little-endian PCM.
// Out-of-range samples are clamped; positive values scale by 32767 and negative
// values by 32768 so both extremes are reachable.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(toInt16(s)))
	}
	return out
}

func toInt16(s float32) int16 {
	switch {
	case s != s: // NaN
		return 0
	case s >= 1:
		return 32767
	case s <= -1:
		return -32768
	case s < 0:
		return int16(s * 32768)
	default:
		return int16(s * 32767)
	}
}

// DecodePCM16 is the inverse of EncodePCM16. A trailing odd byte is ignored.
func DecodePCM16(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		if v < 0 {
			out[i] = float32(v) / 32768
		} else {
			out[i] = float32(v) / 32767
		}
	}
	return out
}

// Resample converts between rates by point sampling (nearest earlier sample).
// There is no anti-aliasing filter; speech stays intelligible, which is all the
// wire needs. in is returned unchanged when the rates match.
func Resample(in []float32, from, to int) []float32 {
	if from == to || from <= 0 || to <= 0 || len(in) == 0 {
		return in
	}
	n := int(int64(len(in)) * int64(to) / int64(from))
	out := make([]float32, n)
	for i := range out {
		j := int(int64(i) * int64(from) / int64(to))
		if j >= len(in) {
			j = len(in) - 1
		}
		out[i] = in[j]
	}
	return out
}

// SamplesDuration is the playback length of n mono samples at rate.
func SamplesDuration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(rate))
}

// PCMMIMEType is the MIME type advertised for PCM16 at rate.
func PCMMIMEType(rate int) string {
	return "audio/pcm;rate=" + strconv.Itoa(rate)
}

// ParsePCMRate extracts the rate parameter from a MIME type such as
// "audio/pcm;rate=24000". ok is false for non-PCM types or a missing rate.
func ParsePCMRate(mime string) (rate int, ok bool) {
	parts := strings.Split(mime, ";")
	if !strings.EqualFold(strings.TrimSpace(parts[0]), "audio/pcm") {
		return 0, false
	}
	for _, p := range parts[1:] {
		k, v, found := strings.Cut(strings.TrimSpace(p), "=")
		if !found || !strings.EqualFold(k, "rate") {
			continue
		}
		r, err := strconv.Atoi(v)
		if err != nil || r <= 0 {
			return 0, false
		}
		return r, true
	}
	return 0, false
}
