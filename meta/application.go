package meta

import (
	"encoding/binary"
	"io"

	"github.com/streamflac/flac/ferror"
)

// Application carries third-party application-specific data identified by a
// registered four-byte ID.
//
// ref: https://www.xiph.org/flac/format.html#metadata_block_application
type Application struct {
	// ID is the registered application identifier, packed big-endian from
	// its four ASCII characters (e.g. "fake" -> 0x66616b65).
	//
	// ref: https://www.xiph.org/flac/id.html
	ID uint32
	// Data is the remainder of the block, in a format defined by ID.
	Data []byte
}

// RegisteredApplications maps a known four-character application ID to a
// human-readable description of its owner, mirroring the public FLAC
// application ID registry. An ID absent from this map is not rejected: the
// registry is informational, not exhaustive.
var RegisteredApplications = map[string]string{
	"ATCH": "FlacFile",
	"BSOL": "beSolo",
	"BUGS": "Bugs Player",
	"Cues": "GoldWave cue points",
	"Fica": "CUE Splitter",
	"Ftol": "flac-tools",
	"MOTB": "MOTB MetaCzar",
	"MPSE": "MP3 Stream Editor",
	"MuML": "MusicML: Music Metadata Language",
	"RIFF": "Sound Devices RIFF chunk storage",
	"SFFL": "Sound Font FLAC",
	"SONY": "Sony Creative Software",
	"SQEZ": "flacsqueeze",
	"TtWv": "TwistedWave",
	"UITS": "UITS Embedding tools",
	"aiff": "FLAC AIFF chunk storage",
	"fake": "flac reference encoder test application ID",
	"imag": "flac-image",
	"peem": "Parseable Embedded Extensible Metadata",
	"qfst": "QFLAC Studio",
	"riff": "FLAC RIFF chunk storage",
	"tune": "TagTuner",
	"xbat": "XBAT",
	"xmcd": "xmcd",
}

func parseApplication(r io.Reader) (*Application, error) {
	app := new(Application)
	if err := binary.Read(r, binary.BigEndian, &app.ID); err != nil {
		return nil, ferror.FromRead(err)
	}
	data, err := readAll(r)
	if err != nil {
		return nil, err
	}
	app.Data = data
	return app, nil
}
