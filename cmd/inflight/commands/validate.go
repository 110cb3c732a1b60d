package commands

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/vkngwrapper/inflight"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate a configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := inflight.LoadConfig(cfgFile)
		if err != nil {
			return err
		}

		logger().Debug("configuration loaded",
			slog.Int("bufferingCount", cfg.BufferingCount),
			slog.Bool("externallySynchronized", cfg.ExternallySynchronized))

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, okStyle.Render("configuration is valid"))
		fmt.Fprintln(out, field("frames in flight", strconv.Itoa(cfg.BufferingCount)))
		fmt.Fprintln(out, field("externally synchronized", strconv.FormatBool(cfg.ExternallySynchronized)))
		fmt.Fprintln(out, field("staging priority", strconv.FormatFloat(float64(cfg.StagingPriority), 'f', 2, 32)))
		fmt.Fprintln(out, field("resource priority", strconv.FormatFloat(float64(cfg.ResourcePriority), 'f', 2, 32)))
		if len(cfg.HeapSizeLimits) > 0 {
			fmt.Fprintln(out, field("heap size limits", fmt.Sprint(cfg.HeapSizeLimits)))
		}
		return nil
	},
}
