package transcode

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/streamvio/streamvio/internal/models"
)

// Pseudo-profile names handled specially by the scheduler.
const (
	ProfileHLS       = "hls"
	ProfileThumbnail = "thumbnail"
)

// Profile is a named bundle of encoder parameters.
type Profile struct {
	Name             string `yaml:"name"`
	VideoCodec       string `yaml:"video_codec"`
	AudioCodec       string `yaml:"audio_codec"`
	MaxWidth         int    `yaml:"max_width"`
	MaxHeight        int    `yaml:"max_height"`
	VideoBitrateKbps int    `yaml:"video_bitrate_kbps"`
	AudioBitrateKbps int    `yaml:"audio_bitrate_kbps"`
	Preset           string `yaml:"preset"`
	Container        string `yaml:"container"`
}

// builtinProfiles are the presets available out of the box.
var builtinProfiles = []Profile{
	{
		Name:             "mobile",
		VideoCodec:       "libx264",
		AudioCodec:       "aac",
		MaxWidth:         854,
		MaxHeight:        480,
		VideoBitrateKbps: 1000,
		AudioBitrateKbps: 96,
		Preset:           "fast",
		Container:        "mp4",
	},
	{
		Name:             "standard",
		VideoCodec:       "libx264",
		AudioCodec:       "aac",
		MaxWidth:         1280,
		MaxHeight:        720,
		VideoBitrateKbps: 2500,
		AudioBitrateKbps: 128,
		Preset:           "medium",
		Container:        "mp4",
	},
	{
		Name:             "high",
		VideoCodec:       "libx264",
		AudioCodec:       "aac",
		MaxWidth:         1920,
		MaxHeight:        1080,
		VideoBitrateKbps: 5000,
		AudioBitrateKbps: 192,
		Preset:           "medium",
		Container:        "mp4",
	},
	{
		Name:             "ultra",
		VideoCodec:       "libx265",
		AudioCodec:       "aac",
		MaxWidth:         3840,
		MaxHeight:        2160,
		VideoBitrateKbps: 12000,
		AudioBitrateKbps: 256,
		Preset:           "slow",
		Container:        "mp4",
	},
}

// Profiles resolves named presets, optionally extended from a YAML file.
type Profiles struct {
	byName         map[string]Profile
	maxBitrateKbps int
}

// NewProfiles creates a resolver seeded with the built-in presets. Video
// bitrates are clamped to maxBitrateKbps at resolution time.
func NewProfiles(maxBitrateKbps int) *Profiles {
	p := &Profiles{
		byName:         make(map[string]Profile, len(builtinProfiles)),
		maxBitrateKbps: maxBitrateKbps,
	}
	for _, prof := range builtinProfiles {
		p.byName[prof.Name] = prof
	}
	return p
}

// LoadFile merges custom profiles from a YAML file over the built-ins.
// Custom profiles win on name collision.
func (p *Profiles) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading profile file: %w", err)
	}

	var custom struct {
		Profiles []Profile `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(data, &custom); err != nil {
		return fmt.Errorf("parsing profile file: %w", err)
	}

	for _, prof := range custom.Profiles {
		if prof.Name == "" {
			return fmt.Errorf("profile file %s contains a profile without a name", path)
		}
		p.byName[prof.Name] = prof
	}
	return nil
}

// Names returns the known profile names sorted alphabetically.
func (p *Profiles) Names() []string {
	names := make([]string, 0, len(p.byName))
	for name := range p.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve looks up a named profile and merges caller overrides on top.
// Overrides win on key collision; the video bitrate is clamped to the
// configured global maximum.
func (p *Profiles) Resolve(name string, overrides models.JobOptions) (Profile, error) {
	prof, ok := p.byName[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", models.ErrUnknownProfile, name)
	}

	if v, ok := intOption(overrides, "max_width"); ok {
		prof.MaxWidth = v
	}
	if v, ok := intOption(overrides, "max_height"); ok {
		prof.MaxHeight = v
	}
	if v, ok := intOption(overrides, "video_bitrate"); ok {
		prof.VideoBitrateKbps = v
	}
	if v, ok := intOption(overrides, "audio_bitrate"); ok {
		prof.AudioBitrateKbps = v
	}
	if v, ok := stringOption(overrides, "video_codec"); ok {
		prof.VideoCodec = v
	}
	if v, ok := stringOption(overrides, "audio_codec"); ok {
		prof.AudioCodec = v
	}
	if v, ok := stringOption(overrides, "preset"); ok {
		prof.Preset = v
	}

	if p.maxBitrateKbps > 0 && prof.VideoBitrateKbps > p.maxBitrateKbps {
		prof.VideoBitrateKbps = p.maxBitrateKbps
	}

	return prof, nil
}

// intOption reads a numeric option, tolerating the float64 values that
// JSON round-trips produce.
func intOption(opts models.JobOptions, key string) (int, bool) {
	if opts == nil {
		return 0, false
	}
	switch v := opts[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func stringOption(opts models.JobOptions, key string) (string, bool) {
	if opts == nil {
		return "", false
	}
	if v, ok := opts[key].(string); ok && v != "" {
		return v, true
	}
	return "", false
}
