package patch

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/andybalholm/brotli"
	"github.com/cespare/xxhash/v2"
	"github.com/pierrec/lz4/v4"

	"github.com/fenilsonani/stoicheia/internal/axis"
	"github.com/fenilsonani/stoicheia/internal/stoierr"
)

// magic identifies a Stoicheia patch stream: the ASCII bytes "STOI" read
// as a little-endian uint32.
const magic uint32 = 0x494f5453

const formatVersion byte = 1

// CompressionKind selects the codec applied to the payload after the header.
type CompressionKind byte

const (
	CompressionOff CompressionKind = iota
	CompressionLZ4
	CompressionBrotli
)

// Compression describes the codec and its quality knob, where quality is
// codec-specific (LZ4 compression level, Brotli quality 0-11).
type Compression struct {
	Kind    CompressionKind
	Quality uint32
}

// Encode writes p to w as a self-describing Stoicheia patch stream:
// magic, version, compression descriptor, filter count (always 0 today),
// an xxhash64 checksum of the uncompressed payload, then the compressed
// axes+dense payload.
func Encode(w io.Writer, p *Patch, c Compression) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, magic); err != nil {
		return stoierr.Wrap(stoierr.SerializationError, "writing magic", err)
	}
	if err := bw.WriteByte(formatVersion); err != nil {
		return stoierr.Wrap(stoierr.SerializationError, "writing version", err)
	}
	if err := bw.WriteByte(byte(c.Kind)); err != nil {
		return stoierr.Wrap(stoierr.SerializationError, "writing compression kind", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, c.Quality); err != nil {
		return stoierr.Wrap(stoierr.SerializationError, "writing compression quality", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(0)); err != nil { // filter count
		return stoierr.Wrap(stoierr.SerializationError, "writing filter count", err)
	}

	var raw bytes.Buffer
	if err := writePayload(&raw, p); err != nil {
		return err
	}
	checksum := xxhash.Sum64(raw.Bytes())
	if err := binary.Write(bw, binary.LittleEndian, checksum); err != nil {
		return stoierr.Wrap(stoierr.SerializationError, "writing payload checksum", err)
	}

	payloadWriter, closePayload, err := wrapCompressor(bw, c)
	if err != nil {
		return err
	}
	if _, err := payloadWriter.Write(raw.Bytes()); err != nil {
		return stoierr.Wrap(stoierr.SerializationError, "writing compressed payload", err)
	}
	if err := closePayload(); err != nil {
		return stoierr.Wrap(stoierr.SerializationError, "closing compressor", err)
	}
	if err := bw.Flush(); err != nil {
		return stoierr.Wrap(stoierr.SerializationError, "flushing patch stream", err)
	}
	return nil
}

// Decode reads a Stoicheia patch stream previously written by Encode.
func Decode(r io.Reader) (*Patch, error) {
	br := bufio.NewReader(r)
	var gotMagic uint32
	if err := binary.Read(br, binary.LittleEndian, &gotMagic); err != nil {
		return nil, stoierr.Wrap(stoierr.SerializationError, "reading magic", err)
	}
	if gotMagic != magic {
		return nil, stoierr.New(stoierr.SerializationError, "bad patch stream magic")
	}
	version, err := br.ReadByte()
	if err != nil {
		return nil, stoierr.Wrap(stoierr.SerializationError, "reading version", err)
	}
	if version != formatVersion {
		return nil, stoierr.Newf(stoierr.SerializationError, "unsupported patch stream version %d", version)
	}
	kindByte, err := br.ReadByte()
	if err != nil {
		return nil, stoierr.Wrap(stoierr.SerializationError, "reading compression kind", err)
	}
	var quality uint32
	if err := binary.Read(br, binary.LittleEndian, &quality); err != nil {
		return nil, stoierr.Wrap(stoierr.SerializationError, "reading compression quality", err)
	}
	var filterCount uint32
	if err := binary.Read(br, binary.LittleEndian, &filterCount); err != nil {
		return nil, stoierr.Wrap(stoierr.SerializationError, "reading filter count", err)
	}
	if filterCount != 0 {
		return nil, stoierr.New(stoierr.SerializationError, "filter pipelines are not supported")
	}
	var wantChecksum uint64
	if err := binary.Read(br, binary.LittleEndian, &wantChecksum); err != nil {
		return nil, stoierr.Wrap(stoierr.SerializationError, "reading payload checksum", err)
	}

	payloadReader, err := wrapDecompressor(br, CompressionKind(kindByte))
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(payloadReader)
	if err != nil {
		return nil, stoierr.Wrap(stoierr.SerializationError, "decompressing payload", err)
	}
	if got := xxhash.Sum64(raw); got != wantChecksum {
		return nil, stoierr.Newf(stoierr.SerializationError, "payload checksum mismatch: got %x want %x", got, wantChecksum)
	}
	return readPayload(bytes.NewReader(raw))
}

func wrapCompressor(w io.Writer, c Compression) (io.Writer, func() error, error) {
	switch c.Kind {
	case CompressionOff:
		return w, func() error { return nil }, nil
	case CompressionLZ4:
		zw := lz4.NewWriter(w)
		if err := zw.Apply(lz4.CompressionLevelOption(lz4.CompressionLevel(c.Quality))); err != nil {
			return nil, nil, stoierr.Wrap(stoierr.SerializationError, "configuring lz4 writer", err)
		}
		return zw, zw.Close, nil
	case CompressionBrotli:
		zw := brotli.NewWriterLevel(w, int(c.Quality))
		return zw, zw.Close, nil
	default:
		return nil, nil, stoierr.Newf(stoierr.SerializationError, "unknown compression kind %d", c.Kind)
	}
}

func wrapDecompressor(r io.Reader, kind CompressionKind) (io.Reader, error) {
	switch kind {
	case CompressionOff:
		return r, nil
	case CompressionLZ4:
		return lz4.NewReader(r), nil
	case CompressionBrotli:
		return brotli.NewReader(r), nil
	default:
		return nil, stoierr.Newf(stoierr.SerializationError, "unknown compression kind %d", kind)
	}
}

func writePayload(w io.Writer, p *Patch) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(p.axes))); err != nil {
		return stoierr.Wrap(stoierr.SerializationError, "writing axis count", err)
	}
	for _, a := range p.axes {
		if err := writeAxis(w, a); err != nil {
			return err
		}
	}
	for _, v := range p.dense {
		if err := binary.Write(w, binary.LittleEndian, math.Float32bits(v)); err != nil {
			return stoierr.Wrap(stoierr.SerializationError, "writing dense payload", err)
		}
	}
	return nil
}

func writeAxis(w io.Writer, a axis.Axis) error {
	nameBytes := []byte(a.Name)
	if err := binary.Write(w, binary.LittleEndian, uint32(len(nameBytes))); err != nil {
		return stoierr.Wrap(stoierr.SerializationError, "writing axis name length", err)
	}
	if _, err := w.Write(nameBytes); err != nil {
		return stoierr.Wrap(stoierr.SerializationError, "writing axis name", err)
	}
	labels := a.Labels()
	if err := binary.Write(w, binary.LittleEndian, uint32(len(labels))); err != nil {
		return stoierr.Wrap(stoierr.SerializationError, "writing axis label count", err)
	}
	for _, l := range labels {
		if err := binary.Write(w, binary.LittleEndian, uint64(l)); err != nil {
			return stoierr.Wrap(stoierr.SerializationError, "writing axis label", err)
		}
	}
	return nil
}

func readPayload(r io.Reader) (*Patch, error) {
	var axisCount uint32
	if err := binary.Read(r, binary.LittleEndian, &axisCount); err != nil {
		return nil, stoierr.Wrap(stoierr.SerializationError, "reading axis count", err)
	}
	axes := make([]axis.Axis, axisCount)
	total := 1
	for i := range axes {
		a, err := readAxis(r)
		if err != nil {
			return nil, err
		}
		axes[i] = a
		total *= a.Len()
	}
	dense := make([]float32, total)
	for i := range dense {
		var bits uint32
		if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
			return nil, stoierr.Wrap(stoierr.SerializationError, "reading dense payload", err)
		}
		dense[i] = math.Float32frombits(bits)
	}
	return New(axes, dense)
}

func readAxis(r io.Reader) (axis.Axis, error) {
	var nameLen uint32
	if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
		return axis.Axis{}, stoierr.Wrap(stoierr.SerializationError, "reading axis name length", err)
	}
	nameBytes := make([]byte, nameLen)
	if _, err := io.ReadFull(r, nameBytes); err != nil {
		return axis.Axis{}, stoierr.Wrap(stoierr.SerializationError, "reading axis name", err)
	}
	var labelCount uint32
	if err := binary.Read(r, binary.LittleEndian, &labelCount); err != nil {
		return axis.Axis{}, stoierr.Wrap(stoierr.SerializationError, "reading axis label count", err)
	}
	labels := make([]axis.Label, labelCount)
	for i := range labels {
		var l uint64
		if err := binary.Read(r, binary.LittleEndian, &l); err != nil {
			return axis.Axis{}, stoierr.Wrap(stoierr.SerializationError, "reading axis label", err)
		}
		labels[i] = axis.Label(l)
	}
	return axis.NewUnchecked(string(nameBytes), labels), nil
}
