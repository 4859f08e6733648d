package transcode

import (
	"fmt"
	"os"

	"github.com/bluenviron/gohlslib/v2/pkg/playlist"
)

// Codec strings advertised in the master playlist. All HLS renditions are
// encoded as H.264 High profile with AAC-LC audio.
const (
	hlsVideoCodec = "avc1.640028"
	hlsAudioCodec = "mp4a.40.2"
)

// MasterPlaylist renders the multivariant playlist for a rendition ladder.
// Variant URIs are relative to the playlist: stream_0.m3u8, stream_1.m3u8
// and so on, in ladder order.
func MasterPlaylist(ladder []Rendition) ([]byte, error) {
	mv := &playlist.Multivariant{
		Version:             3,
		IndependentSegments: true,
	}

	for i, r := range ladder {
		// EXT-X-STREAM-INF bandwidth is in bits per second and covers
		// both elementary streams.
		bandwidth := (r.BitrateKbps + hlsAudioBitrateKbps) * 1000
		mv.Variants = append(mv.Variants, &playlist.MultivariantVariant{
			Bandwidth:  bandwidth,
			Codecs:     []string{hlsVideoCodec, hlsAudioCodec},
			Resolution: fmt.Sprintf("%dx%d", r.Width, r.Height),
			URI:        fmt.Sprintf("stream_%d.m3u8", i),
		})
	}

	data, err := mv.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshaling master playlist: %w", err)
	}
	return data, nil
}

// WriteMasterPlaylist writes the multivariant playlist to path.
func WriteMasterPlaylist(path string, ladder []Rendition) error {
	data, err := MasterPlaylist(ladder)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing master playlist: %w", err)
	}
	return nil
}
