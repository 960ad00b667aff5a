package pcap

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/frozenpine/stack4go/errors"
)

const (
	InFile  = "in.pcap"
	OutFile = "out.pcap"
)

// FileDriver replays frames of a capture file one per Recv and records
// every sent frame into another capture file.
type FileDriver struct {
	input  *os.File
	reader *pcapgo.Reader

	output *os.File
	writer *pcapgo.Writer

	lastTS time.Time
	rounds int
	eof    bool
}

// OpenDir replays <dir>/in.pcap and records into <dir>/out.pcap.
func OpenDir(dir string) (*FileDriver, error) {
	return OpenFiles(filepath.Join(dir, InFile), filepath.Join(dir, OutFile))
}

func OpenFiles(inPath, outPath string) (*FileDriver, error) {
	input, err := os.Open(inPath)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	reader, err := pcapgo.NewReader(input)
	if err != nil {
		input.Close()
		return nil, errors.Wrapf(err, "read %s", inPath)
	}

	if reader.LinkType() != layers.LinkTypeEthernet {
		input.Close()
		return nil, errors.Wrapf(ErrLinkType, "%s: %s", inPath, reader.LinkType())
	}

	output, err := os.Create(outPath)
	if err != nil {
		input.Close()
		return nil, errors.WithStack(err)
	}

	writer := pcapgo.NewWriter(output)
	if err := writer.WriteFileHeader(DefaultSnapLen, layers.LinkTypeEthernet); err != nil {
		input.Close()
		output.Close()
		return nil, errors.Wrapf(err, "write %s", outPath)
	}

	return &FileDriver{
		input:  input,
		reader: reader,
		output: output,
		writer: writer,
	}, nil
}

func (drv *FileDriver) Recv(p []byte) (int, error) {
	if drv.eof {
		return 0, nil
	}

	data, ci, err := drv.reader.ReadPacketData()
	if err == io.EOF {
		drv.eof = true
		return 0, nil
	}
	if err != nil {
		return 0, errors.WithStack(err)
	}

	drv.lastTS = ci.Timestamp
	drv.rounds++

	if len(data) > len(p) {
		return 0, errors.Wrapf(ErrFrameTooLarge, "round %d: %d bytes", drv.rounds, len(data))
	}

	return copy(p, data), nil
}

// Send records frame stamped with the time of the last replayed frame.
func (drv *FileDriver) Send(frame []byte) error {
	ts := drv.lastTS
	if ts.IsZero() {
		ts = time.Now()
	}

	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(frame),
		Length:        len(frame),
	}

	return errors.WithStack(drv.writer.WritePacket(ci, frame))
}

// Rounds frames replayed so far
func (drv *FileDriver) Rounds() int {
	return drv.rounds
}

// Done checks if input capture is exhausted
func (drv *FileDriver) Done() bool {
	return drv.eof
}

func (drv *FileDriver) Close() error {
	return errors.Join(drv.input.Close(), drv.output.Close())
}
