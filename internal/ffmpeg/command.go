package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"
)

// CommandBuilder builds ffmpeg argument lists with a fluent API.
type CommandBuilder struct {
	binary     string
	globalArgs []string
	inputArgs  []string
	input      string
	filterArgs []string
	outputArgs []string
	output     string
	logLevel   string
	overwrite  bool
}

// NewCommandBuilder creates a new ffmpeg command builder.
func NewCommandBuilder(ffmpegPath string) *CommandBuilder {
	return &CommandBuilder{
		binary:   ffmpegPath,
		logLevel: "error",
	}
}

// HideBanner hides the ffmpeg banner.
func (b *CommandBuilder) HideBanner() *CommandBuilder {
	b.globalArgs = append(b.globalArgs, "-hide_banner")
	return b
}

// Stats enables progress stats output on stderr. Required for progress
// tracking since the default log level suppresses them.
func (b *CommandBuilder) Stats() *CommandBuilder {
	b.globalArgs = append(b.globalArgs, "-stats")
	return b
}

// Overwrite enables output file overwriting.
func (b *CommandBuilder) Overwrite() *CommandBuilder {
	b.overwrite = true
	return b
}

// Seek sets the input seek offset in seconds.
func (b *CommandBuilder) Seek(seconds float64) *CommandBuilder {
	if seconds > 0 {
		b.inputArgs = append(b.inputArgs, "-ss", strconv.FormatFloat(seconds, 'f', 3, 64))
	}
	return b
}

// Input sets the input source.
func (b *CommandBuilder) Input(input string) *CommandBuilder {
	b.input = input
	return b
}

// VideoCodec sets the video codec.
func (b *CommandBuilder) VideoCodec(codec string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-c:v", codec)
	return b
}

// AudioCodec sets the audio codec.
func (b *CommandBuilder) AudioCodec(codec string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-c:a", codec)
	return b
}

// VideoBitrate sets the target video bitrate in kbps.
func (b *CommandBuilder) VideoBitrate(kbps int) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-b:v", fmt.Sprintf("%dk", kbps))
	return b
}

// MaxBitrate sets the bitrate ceiling and decoder buffer size in kbps.
func (b *CommandBuilder) MaxBitrate(maxKbps, bufKbps int) *CommandBuilder {
	b.outputArgs = append(b.outputArgs,
		"-maxrate", fmt.Sprintf("%dk", maxKbps),
		"-bufsize", fmt.Sprintf("%dk", bufKbps),
	)
	return b
}

// AudioBitrate sets the audio bitrate in kbps.
func (b *CommandBuilder) AudioBitrate(kbps int) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-b:a", fmt.Sprintf("%dk", kbps))
	return b
}

// AudioChannels sets the number of audio channels.
func (b *CommandBuilder) AudioChannels(channels int) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-ac", strconv.Itoa(channels))
	return b
}

// Preset sets the encoder preset.
func (b *CommandBuilder) Preset(preset string) *CommandBuilder {
	if preset != "" {
		b.outputArgs = append(b.outputArgs, "-preset", preset)
	}
	return b
}

// VideoFilter adds a video filter.
func (b *CommandBuilder) VideoFilter(filter string) *CommandBuilder {
	b.filterArgs = append(b.filterArgs, filter)
	return b
}

// Scale adds a scale filter to the given dimensions.
func (b *CommandBuilder) Scale(width, height int) *CommandBuilder {
	return b.VideoFilter(fmt.Sprintf("scale=%d:%d", width, height))
}

// Frames limits the number of output video frames.
func (b *CommandBuilder) Frames(n int) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-vframes", strconv.Itoa(n))
	return b
}

// NoAudio drops all audio streams.
func (b *CommandBuilder) NoAudio() *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-an")
	return b
}

// HLSArgs configures segmented HLS output with a VOD playlist and a fixed
// segment naming pattern next to the playlist.
func (b *CommandBuilder) HLSArgs(segmentSeconds int, segmentPattern string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs,
		"-f", "hls",
		"-hls_time", strconv.Itoa(segmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", segmentPattern,
	)
	return b
}

// OutputArgs adds arbitrary output arguments.
func (b *CommandBuilder) OutputArgs(args ...string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, args...)
	return b
}

// Output sets the output destination.
func (b *CommandBuilder) Output(output string) *CommandBuilder {
	b.output = output
	return b
}

// Binary returns the ffmpeg executable path.
func (b *CommandBuilder) Binary() string {
	return b.binary
}

// Args assembles the full argument list.
func (b *CommandBuilder) Args() []string {
	args := []string{"-loglevel", b.logLevel}
	args = append(args, b.globalArgs...)
	if b.overwrite {
		args = append(args, "-y")
	}
	args = append(args, b.inputArgs...)
	args = append(args, "-i", b.input)
	if len(b.filterArgs) > 0 {
		args = append(args, "-vf", strings.Join(b.filterArgs, ","))
	}
	args = append(args, b.outputArgs...)
	args = append(args, b.output)
	return args
}

// String returns the command as a printable string.
func (b *CommandBuilder) String() string {
	return b.binary + " " + strings.Join(b.Args(), " ")
}
