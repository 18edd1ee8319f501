package media

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"storyboard/internal/services"
)

// Speech backends return raw 16-bit little-endian PCM at 24 kHz mono.
const (
	DefaultSampleRate = 24000
	DefaultChannels   = 1
	DefaultSampleSize = 2
)

// WriteWAV writes raw PCM data to path with a standard RIFF/WAVE header.
func WriteWAV(path string, pcm []byte, sampleRate, channels, sampleSize int) error {
	f, err := os.Create(path)
	if err != nil {
		return services.Wrap(services.ErrGeneration, "media", "write wav", path, err)
	}
	defer f.Close()

	byteRate := sampleRate * channels * sampleSize
	blockAlign := channels * sampleSize

	header := make([]byte, 0, 44)
	header = append(header, []byte("RIFF")...)
	header = binary.LittleEndian.AppendUint32(header, uint32(36+len(pcm)))
	header = append(header, []byte("WAVE")...)
	header = append(header, []byte("fmt ")...)
	header = binary.LittleEndian.AppendUint32(header, 16)
	header = binary.LittleEndian.AppendUint16(header, 1) // PCM
	header = binary.LittleEndian.AppendUint16(header, uint16(channels))
	header = binary.LittleEndian.AppendUint32(header, uint32(sampleRate))
	header = binary.LittleEndian.AppendUint32(header, uint32(byteRate))
	header = binary.LittleEndian.AppendUint16(header, uint16(blockAlign))
	header = binary.LittleEndian.AppendUint16(header, uint16(sampleSize*8))
	header = append(header, []byte("data")...)
	header = binary.LittleEndian.AppendUint32(header, uint32(len(pcm)))

	if _, err := f.Write(header); err != nil {
		return services.Wrap(services.ErrGeneration, "media", "write wav", path, err)
	}
	if _, err := f.Write(pcm); err != nil {
		return services.Wrap(services.ErrGeneration, "media", "write wav", path, err)
	}
	return f.Close()
}

// WAVDuration reads the header of a PCM WAV file and returns its play time
// in seconds.
func WAVDuration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, services.Wrap(services.ErrGeneration, "media", "read wav", path, err)
	}
	defer f.Close()

	header := make([]byte, 12)
	if _, err := io.ReadFull(f, header); err != nil {
		return 0, services.Wrap(services.ErrGeneration, "media", "read wav", path, err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return 0, services.Wrap(services.ErrGeneration, "media", "read wav",
			fmt.Sprintf("%s is not a RIFF/WAVE file", path), nil)
	}

	var byteRate uint32
	chunk := make([]byte, 8)
	for {
		if _, err := io.ReadFull(f, chunk); err != nil {
			return 0, services.Wrap(services.ErrGeneration, "media", "read wav", path, err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			fmtChunk := make([]byte, size)
			if _, err := io.ReadFull(f, fmtChunk); err != nil {
				return 0, services.Wrap(services.ErrGeneration, "media", "read wav", path, err)
			}
			byteRate = binary.LittleEndian.Uint32(fmtChunk[8:12])
		case "data":
			if byteRate == 0 {
				return 0, services.Wrap(services.ErrGeneration, "media", "read wav",
					fmt.Sprintf("%s has no fmt chunk before data", path), nil)
			}
			return float64(size) / float64(byteRate), nil
		default:
			if _, err := f.Seek(int64(size), io.SeekCurrent); err != nil {
				return 0, services.Wrap(services.ErrGeneration, "media", "read wav", path, err)
			}
		}
	}
}

