package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/streamvio/streamvio/internal/ffmpeg"
)

// detectCmd represents the detect command
var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect FFmpeg and hardware capabilities",
	Long: `Detect the FFmpeg installation and hardware acceleration capabilities.

This command resolves the ffmpeg and ffprobe binaries, runs hardware
encoder detection, and outputs the results as JSON. Use this to verify
what acceleration is available on this system before enabling it.

Examples:
  # Basic detection (JSON output)
  streamvio detect

  # Pretty-printed JSON
  streamvio detect --pretty

  # Output to file
  streamvio detect > capabilities.json`,
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)

	detectCmd.Flags().Bool("pretty", false, "pretty-print JSON output")
	detectCmd.Flags().Duration("timeout", 30*time.Second, "detection timeout")
}

// DetectionResult contains the full detection output.
type DetectionResult struct {
	FFmpeg       FFmpegInfo       `json:"ffmpeg"`
	Capabilities CapabilitiesInfo `json:"capabilities"`
}

// FFmpegInfo contains resolved binary paths.
type FFmpegInfo struct {
	FFmpegPath  string `json:"ffmpeg_path"`
	FFprobePath string `json:"ffprobe_path,omitempty"`
}

// CapabilitiesInfo contains detected capabilities.
type CapabilitiesInfo struct {
	HWAccel      string `json:"hwaccel"`
	VideoEncoder string `json:"video_encoder"`
}

func runDetect(cmd *cobra.Command, _ []string) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	pretty, _ := cmd.Flags().GetBool("pretty")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	bins, err := ffmpeg.FindBinaries(
		viper.GetString("ffmpeg.binary_path"),
		viper.GetString("ffmpeg.probe_path"),
	)
	if err != nil {
		return fmt.Errorf("locating ffmpeg: %w", err)
	}

	capability := ffmpeg.NewHWAccelDetector(bins.FFmpeg).Detect(ctx)

	result := DetectionResult{
		FFmpeg: FFmpegInfo{
			FFmpegPath:  bins.FFmpeg,
			FFprobePath: bins.FFprobe,
		},
		Capabilities: CapabilitiesInfo{
			HWAccel:      string(capability),
			VideoEncoder: capability.Encoder(),
		},
	}

	var output []byte
	if pretty {
		output, err = json.MarshalIndent(result, "", "  ")
	} else {
		output, err = json.Marshal(result)
	}
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	fmt.Fprintln(os.Stdout, string(output))
	return nil
}
