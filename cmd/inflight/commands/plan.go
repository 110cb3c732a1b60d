package commands

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/spf13/cobra"
	"github.com/vkngwrapper/inflight"
	"github.com/vkngwrapper/inflight/release"
)

var (
	planFrames int
	planColor  bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the release ring layout and destruction schedule as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := inflight.LoadConfig(cfgFile)
		if err != nil {
			return err
		}

		out, err := buildPlan(cfg.BufferingCount, planFrames)
		if err != nil {
			return err
		}

		document := string(out)
		if planColor {
			document = highlightJSON(document)
		}

		fmt.Fprintln(cmd.OutOrStdout(), document)
		return nil
	},
}

func init() {
	planCmd.Flags().IntVar(&planFrames, "frames", 0, "number of frames to schedule (default is two trips around the ring)")
	planCmd.Flags().BoolVar(&planColor, "color", false, "highlight the JSON output for a terminal")
}

// buildPlan describes the buckets backing each slot, and for each frame, which earlier frame's releases
// are destroyed when it begins
func buildPlan(bufferingCount, frames int) ([]byte, error) {
	if bufferingCount < 1 {
		return nil, errors.Wrapf(inflight.ErrInvalidConfig, "buffering count must be positive, received %d", bufferingCount)
	}
	if frames <= 0 {
		frames = 2 * bufferingCount
	}

	writer := jwriter.NewWriter()
	obj := writer.Object()
	obj.Name("BufferingCount").Int(bufferingCount)

	slots := obj.Name("Slots").Array()
	for slot := 0; slot < bufferingCount; slot++ {
		slotObj := slots.Object()
		slotObj.Name("Slot").Int(slot)
		slotObj.Name("CurrentBucket").Int(release.SlotIndex(slot, 0, bufferingCount))
		slotObj.Name("DeferredBucket").Int(release.SlotIndex(slot, 1, bufferingCount))
		slotObj.End()
	}
	slots.End()

	schedule := obj.Name("Frames").Array()
	for frame := 0; frame < frames; frame++ {
		frameObj := schedule.Object()
		frameObj.Name("Frame").Int(frame)
		frameObj.Name("Slot").Int(frame % bufferingCount)

		// Releases made while recording a frame wait for the next frame on the same slot
		destroys := frameObj.Name("DestroysReleasesFrom")
		if frame >= bufferingCount {
			destroys.Int(frame - bufferingCount)
		} else {
			destroys.Null()
		}
		frameObj.End()
	}
	schedule.End()
	obj.End()

	if err := writer.Error(); err != nil {
		return nil, err
	}
	return writer.Bytes(), nil
}
