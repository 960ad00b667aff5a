package pcap

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket/pcapgo"

	"github.com/frozenpine/stack4go/errors"
)

// Difference one mismatching frame of two captures,
// nil side means the frame is missing.
type Difference struct {
	Index int
	Want  []byte
	Got   []byte
}

func (d Difference) String() string {
	switch {
	case d.Want == nil:
		return fmt.Sprintf("frame %d: unexpected %x", d.Index, d.Got)
	case d.Got == nil:
		return fmt.Sprintf("frame %d: missing %x", d.Index, d.Want)
	default:
		return fmt.Sprintf("frame %d: want %x got %x", d.Index, d.Want, d.Got)
	}
}

// ReadFrames loads all frames of a capture file.
func ReadFrames(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	reader, err := pcapgo.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	var frames [][]byte

	for {
		data, _, err := reader.ReadPacketData()
		if err == io.EOF {
			return frames, nil
		}
		if err != nil {
			return frames, errors.Wrapf(err, "read %s frame %d", path, len(frames))
		}

		frames = append(frames, bytes.Clone(data))
	}
}

// Diff compares frames of two captures in order, timestamps ignored.
func Diff(wantPath, gotPath string) ([]Difference, error) {
	want, err := ReadFrames(wantPath)
	if err != nil {
		return nil, err
	}

	got, err := ReadFrames(gotPath)
	if err != nil {
		return nil, err
	}

	var diffs []Difference

	for idx := 0; idx < len(want) || idx < len(got); idx++ {
		var w, g []byte

		if idx < len(want) {
			w = want[idx]
		}
		if idx < len(got) {
			g = got[idx]
		}

		if w == nil || g == nil || !bytes.Equal(w, g) {
			diffs = append(diffs, Difference{Index: idx, Want: w, Got: g})
		}
	}

	return diffs, nil
}
