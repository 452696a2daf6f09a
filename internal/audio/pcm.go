package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotWAV means the data has no RIFF/WAVE header.
	ErrNotWAV = errors.New("not a RIFF/WAVE file")

	// ErrUnsupportedFormat means the WAV is not 16-bit integer PCM.
	ErrUnsupportedFormat = errors.New("unsupported WAV format")

	// ErrMisaligned means PCM data is not a whole number of frames.
	ErrMisaligned = errors.New("PCM data not aligned to frame size")
)

const bytesPerSample = 2 // signed 16-bit little endian

// Format describes signed 16-bit little-endian PCM.
type Format struct {
	SampleRate int
	Channels   int
}

// FrameSize returns the number of bytes in one frame (one sample per channel).
func (f Format) FrameSize() int {
	return bytesPerSample * f.Channels
}

// Duration returns the length in seconds of n bytes of PCM.
func (f Format) Duration(n int) float64 {
	if f.SampleRate == 0 || f.FrameSize() == 0 {
		return 0
	}
	return float64(n/f.FrameSize()) / float64(f.SampleRate)
}

// DecodeWAV extracts the format and sample data of a 16-bit PCM WAV file.
func DecodeWAV(data []byte) (Format, []byte, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Format{}, nil, ErrNotWAV
	}

	var (
		format    Format
		haveFmt   bool
		pcm       []byte
		haveData  bool
		remaining = data[12:]
	)
	for len(remaining) >= 8 && !(haveFmt && haveData) {
		id := string(remaining[0:4])
		size := int(binary.LittleEndian.Uint32(remaining[4:8]))
		body := remaining[8:]
		if size > len(body) {
			// Truncated files are common; take what is there.
			size = len(body)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return Format{}, nil, fmt.Errorf("%w: short fmt chunk", ErrUnsupportedFormat)
			}
			audioFormat := binary.LittleEndian.Uint16(body[0:2])
			bits := binary.LittleEndian.Uint16(body[14:16])
			if (audioFormat != 1 && audioFormat != 0xFFFE) || bits != 16 {
				return Format{}, nil, fmt.Errorf("%w: format %d, %d bits", ErrUnsupportedFormat, audioFormat, bits)
			}
			format = Format{
				Channels:   int(binary.LittleEndian.Uint16(body[2:4])),
				SampleRate: int(binary.LittleEndian.Uint32(body[4:8])),
			}
			haveFmt = true
		case "data":
			pcm = body[:size]
			haveData = true
		}

		next := 8 + size + size%2
		if next > len(remaining) {
			break
		}
		remaining = remaining[next:]
	}

	if !haveFmt || !haveData {
		return Format{}, nil, fmt.Errorf("%w: missing fmt or data chunk", ErrUnsupportedFormat)
	}
	if format.Channels < 1 || format.SampleRate < 1 {
		return Format{}, nil, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedFormat, format.Channels, format.SampleRate)
	}
	pcm = pcm[:len(pcm)-len(pcm)%format.FrameSize()]
	return format, pcm, nil
}

// EncodeWAV wraps PCM data in a canonical 44-byte WAV header.
func EncodeWAV(f Format, pcm []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))

	write := func(v any) { _ = binary.Write(&buf, binary.LittleEndian, v) }
	buf.WriteString("RIFF")
	write(uint32(36 + len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	write(uint32(16))
	write(uint16(1))
	write(uint16(f.Channels))
	write(uint32(f.SampleRate))
	write(uint32(f.SampleRate * f.FrameSize()))
	write(uint16(f.FrameSize()))
	write(uint16(bytesPerSample * 8))
	buf.WriteString("data")
	write(uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// LoadFile reads a WAV file, or raw PCM already in the target format, and
// converts it to target.
func LoadFile(path string, target Format) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(path), ".wav") || bytes.HasPrefix(data, []byte("RIFF")) {
		format, pcm, err := DecodeWAV(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return Convert(pcm, format, target), nil
	}

	if len(data)%target.FrameSize() != 0 {
		return nil, fmt.Errorf("%s: %w (%d bytes, frame %d)", path, ErrMisaligned, len(data), target.FrameSize())
	}
	return data, nil
}

// Convert changes channel count and sample rate of pcm from one format to
// another.
func Convert(pcm []byte, from, to Format) []byte {
	out := Remix(pcm, from.Channels, to.Channels)
	if from.SampleRate != to.SampleRate && from.SampleRate > 0 {
		out = Resample(out, to.Channels, float64(from.SampleRate)/float64(to.SampleRate))
	}
	return out
}

// Remix converts between mono and multi-channel PCM. Mono is duplicated
// into every output channel; multi-channel input is averaged down to mono.
func Remix(pcm []byte, from, to int) []byte {
	if from == to || from < 1 || to < 1 {
		return pcm
	}

	frames := len(pcm) / (bytesPerSample * from)
	out := make([]byte, frames*bytesPerSample*to)
	for i := 0; i < frames; i++ {
		var sum int
		for ch := 0; ch < from; ch++ {
			sum += int(sampleAt(pcm, i*from+ch))
		}
		mixed := int16(sum / from)
		for ch := 0; ch < to; ch++ {
			var v int16
			if from == 1 {
				v = sampleAt(pcm, i)
			} else if to == 1 {
				v = mixed
			} else {
				v = sampleAt(pcm, i*from+ch%from)
			}
			putSample(out, i*to+ch, v)
		}
	}
	return out
}

// Resample performs linear-interpolation resampling. step is the number of
// input frames consumed per output frame: 2 halves the length (twice the
// speed), 0.5 doubles it.
func Resample(pcm []byte, channels int, step float64) []byte {
	if step == 1 || step <= 0 || math.IsNaN(step) || math.IsInf(step, 0) || channels < 1 {
		return pcm
	}

	inFrames := len(pcm) / (bytesPerSample * channels)
	if inFrames == 0 {
		return nil
	}
	outFrames := int(float64(inFrames) / step)
	out := make([]byte, outFrames*bytesPerSample*channels)

	for i := 0; i < outFrames; i++ {
		pos := float64(i) * step
		idx := int(pos)
		frac := pos - float64(idx)

		for ch := 0; ch < channels; ch++ {
			if idx >= inFrames-1 {
				putSample(out, i*channels+ch, sampleAt(pcm, (inFrames-1)*channels+ch))
				continue
			}
			a := float64(sampleAt(pcm, idx*channels+ch))
			b := float64(sampleAt(pcm, (idx+1)*channels+ch))
			putSample(out, i*channels+ch, int16(a*(1-frac)+b*frac))
		}
	}
	return out
}

func sampleAt(pcm []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(pcm[i*bytesPerSample:]))
}

func putSample(pcm []byte, i int, v int16) {
	binary.LittleEndian.PutUint16(pcm[i*bytesPerSample:], uint16(v))
}
