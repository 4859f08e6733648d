package models

// MediaFile caches the probed technical metadata of a source file so the
// scheduler and the media API do not re-run ffprobe on every request.
type MediaFile struct {
	BaseModel

	// Path is the absolute path of the file on disk.
	Path string `gorm:"not null;uniqueIndex;size:1024" json:"path"`

	// SizeBytes is the file size at probe time.
	SizeBytes int64 `json:"size_bytes"`

	// Container is the demuxer format name reported by ffprobe.
	Container string `gorm:"size:100" json:"container"`

	// DurationSeconds is the container duration; zero when unknown.
	DurationSeconds float64 `json:"duration_seconds"`

	// BitrateKbps is the overall bitrate; zero when unknown.
	BitrateKbps int `json:"bitrate_kbps"`

	// VideoCodec is the codec name of the first video stream, if any.
	VideoCodec string `gorm:"size:50" json:"video_codec,omitempty"`

	// Width and Height are the coded dimensions of the first video stream.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`

	// Framerate is the average frame rate of the first video stream.
	Framerate float64 `json:"framerate,omitempty"`

	// AudioCodec is the codec name of the first audio stream, if any.
	AudioCodec string `gorm:"size:50" json:"audio_codec,omitempty"`

	// AudioChannels is the channel count of the first audio stream.
	AudioChannels int `json:"audio_channels,omitempty"`

	// SampleRateHz is the sample rate of the first audio stream.
	SampleRateHz int `json:"sample_rate_hz,omitempty"`

	// ProbedAt records when the metadata was last refreshed.
	ProbedAt Time `json:"probed_at"`
}

// TableName returns the table name for MediaFile.
func (MediaFile) TableName() string {
	return "media_files"
}

// HasVideo returns true when a video stream was found during probing.
func (m *MediaFile) HasVideo() bool {
	return m.VideoCodec != ""
}

// HasKnownDimensions returns true when both dimensions are positive.
func (m *MediaFile) HasKnownDimensions() bool {
	return m.Width > 0 && m.Height > 0
}
