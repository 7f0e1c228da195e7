// Package media wraps generated media bytes into self-describing forms: WAV
// containers for raw PCM audio and data URIs for embedding in responses.
package media

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"mime"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// PCM describes the layout of raw pulse-code-modulated samples.
type PCM struct {
	Channels   int
	SampleRate int
	BitDepth   int
}

// DefaultSpeechPCM is the layout produced by the speech models: mono 16-bit at 24kHz.
var DefaultSpeechPCM = PCM{Channels: 1, SampleRate: 24000, BitDepth: 16}

const wavHeaderSize = 44

// WAV wraps samples in a canonical 44-byte RIFF/WAVE header.
func WAV(samples []byte, format PCM) ([]byte, error) {
	if format.Channels <= 0 || format.SampleRate <= 0 || format.BitDepth <= 0 || format.BitDepth%8 != 0 {
		return nil, fmt.Errorf("invalid pcm layout %+v", format)
	}
	blockAlign := format.Channels * format.BitDepth / 8
	byteRate := format.SampleRate * blockAlign

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(samples)))
	buf.WriteString("RIFF")
	le32(buf, uint32(36+len(samples)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	le32(buf, 16)
	le16(buf, 1) // linear PCM
	le16(buf, uint16(format.Channels))
	le32(buf, uint32(format.SampleRate))
	le32(buf, uint32(byteRate))
	le16(buf, uint16(blockAlign))
	le16(buf, uint16(format.BitDepth))
	buf.WriteString("data")
	le32(buf, uint32(len(samples)))
	buf.Write(samples)
	return buf.Bytes(), nil
}

// WAVHeader is the decoded form of a canonical WAV header.
type WAVHeader struct {
	PCM
	DataSize int
}

// ParseWAVHeader decodes the header written by WAV.
func ParseWAVHeader(data []byte) (WAVHeader, error) {
	if len(data) < wavHeaderSize || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return WAVHeader{}, errors.New("not a wav container")
	}
	return WAVHeader{
		PCM: PCM{
			Channels:   int(binary.LittleEndian.Uint16(data[22:24])),
			SampleRate: int(binary.LittleEndian.Uint32(data[24:28])),
			BitDepth:   int(binary.LittleEndian.Uint16(data[34:36])),
		},
		DataSize: int(binary.LittleEndian.Uint32(data[40:44])),
	}, nil
}

// PCMFromMIME reads the sample rate from a "audio/L16;codec=pcm;rate=24000"
// style MIME type, falling back to DefaultSpeechPCM.
func PCMFromMIME(mimeType string) PCM {
	format := DefaultSpeechPCM
	_, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return format
	}
	if rate, err := strconv.Atoi(params["rate"]); err == nil && rate > 0 {
		format.SampleRate = rate
	}
	return format
}

// DataURI encodes data as data:<mime>;base64,<payload>. When mimeType is
// empty or generic the type is sniffed from the content.
func DataURI(mimeType string, data []byte) string {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = Detect(data)
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Detect sniffs the MIME type of data.
func Detect(data []byte) string {
	mt := mimetype.Detect(data).String()
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return mt
}

// ParseDataURI splits a base64 data URI into its MIME type and payload.
func ParseDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, errors.New("not a data uri")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("data uri has no payload")
	}
	mimeType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, errors.New("data uri is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode data uri: %w", err)
	}
	return mimeType, data, nil
}

func le16(buf *bytes.Buffer, v uint16) {
	_ = binary.Write(buf, binary.LittleEndian, v)
}

func le32(buf *bytes.Buffer, v uint32) {
	_ = binary.Write(buf, binary.LittleEndian, v)
}
