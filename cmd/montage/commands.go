package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/bobarin/montage/internal/captions"
	"github.com/bobarin/montage/internal/config"
	"github.com/bobarin/montage/internal/engine"
	"github.com/bobarin/montage/internal/models"
	"github.com/bobarin/montage/internal/progress"
	"github.com/bobarin/montage/internal/server"
	"github.com/bobarin/montage/internal/storage"
	"github.com/bobarin/montage/internal/timeline"
	"github.com/bobarin/montage/internal/worker"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newRenderCmd(root *rootOptions) *cobra.Command {
	var manifest, output string

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one job manifest on this machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}

			req, err := models.LoadRequest(manifest)
			if err != nil {
				return err
			}
			if output != "" {
				req.OutputPath = output
			}

			var publisher worker.Publisher
			if req.Publish && cfg.S3.Enabled() {
				stor, err := storage.New(cmd.Context(), storage.Config(cfg.S3))
				if err != nil {
					return err
				}
				publisher = stor
			}

			eng := engine.NewFFmpeg(engine.Options{Binary: cfg.FFmpegPath, ProbeTimeout: cfg.ProbeTimeout})
			pipeline := worker.NewPipeline(eng, publisher, server.PipelineOptions(cfg))

			bus := progress.NewBus(16, progress.LogSink())
			go bus.Run(context.Background())
			defer bus.Close()

			jobID := uuid.New()
			res, err := worker.New(nil, nil, pipeline, bus).Process(cmd.Context(), jobID, req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "job:        %s\n", jobID)
			fmt.Fprintf(out, "output:     %s\n", res.Output)
			fmt.Fprintf(out, "duration:   %.2fs\n", res.Duration)
			fmt.Fprintf(out, "segments:   %d x %.2fs (transition %.2fs)\n", res.Plan.SegmentCount, res.Plan.SegmentDuration, res.Plan.TransitionDuration)
			fmt.Fprintf(out, "effects:    %s\n", strings.Join(res.Effects, ", "))
			fmt.Fprintf(out, "background: %t  captions: %t\n", res.Mixed, res.Captioned)
			if res.URL != "" {
				fmt.Fprintf(out, "published:  %s\n", res.URL)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&manifest, "file", "f", "", "job manifest (YAML or JSON)")
	cmd.Flags().StringVarP(&output, "out", "o", "", "override the manifest's output path")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newPlanCmd() *cobra.Command {
	var duration, target, maxTransition float64

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the segment plan for a narration length",
		RunE: func(cmd *cobra.Command, args []string) error {
			pacing := timeline.DefaultPacing
			pacing.TargetSegment = target
			pacing.MaxTransition = maxTransition

			plan, err := timeline.New(duration, pacing)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "segments: %d  duration: %.3fs  transition: %.3fs  composed: %.3fs\n",
				plan.SegmentCount, plan.SegmentDuration, plan.TransitionDuration, plan.ComposedDuration())

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "slot\tduration\txfade offset")
			for _, s := range plan.Slots {
				offset := "-"
				if s.Index > 0 {
					offset = fmt.Sprintf("%.3f", plan.Offset(s.Index))
				}
				fmt.Fprintf(tw, "%d\t%.3f\t%s\n", s.Index, s.Duration, offset)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Float64Var(&duration, "duration", 0, "narration length in seconds")
	cmd.Flags().Float64Var(&target, "target", timeline.DefaultPacing.TargetSegment, "target seconds per segment")
	cmd.Flags().Float64Var(&maxTransition, "max-transition", timeline.DefaultPacing.MaxTransition, "maximum transition seconds")
	_ = cmd.MarkFlagRequired("duration")
	return cmd
}

func newCaptionsCmd() *cobra.Command {
	var timingsPath, stylePath, output, orientation, mode, position string

	cmd := &cobra.Command{
		Use:   "captions",
		Short: "Build an ASS caption track from word timings",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := readTimings(timingsPath)
			if err != nil {
				return err
			}

			var style captions.Style
			if stylePath != "" {
				data, err := os.ReadFile(stylePath)
				if err != nil {
					return fmt.Errorf("failed to read style: %w", err)
				}
				if err := yaml.Unmarshal(data, &style); err != nil {
					return fmt.Errorf("failed to parse style: %w", err)
				}
			}
			if mode != "" {
				style.Mode = captions.Mode(mode)
			}
			if position != "" {
				style.Position = captions.Position(position)
			}
			if err := style.Validate(); err != nil {
				return err
			}

			size := models.Orientation(orientation).Resolution()
			doc, err := captions.Build(items, style.WithDefaults(), size.Width, size.Height)
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err = doc.WriteTo(cmd.OutOrStdout())
				return err
			}
			if err := doc.WriteFile(output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d events to %s\n", len(doc.Events), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&timingsPath, "timings", "t", "", "word timings (JSON or YAML list)")
	cmd.Flags().StringVarP(&output, "out", "o", "", "ASS output path (default stdout)")
	cmd.Flags().StringVar(&stylePath, "style", "", "caption style file (YAML or JSON)")
	cmd.Flags().StringVar(&orientation, "orientation", string(models.OrientationVertical), "vertical or horizontal")
	cmd.Flags().StringVar(&mode, "mode", "", "plain, karaoke, highlight or pop")
	cmd.Flags().StringVar(&position, "position", "", "top, middle or bottom")
	_ = cmd.MarkFlagRequired("timings")
	return cmd
}

func readTimings(path string) ([]captions.TimingItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timings: %w", err)
	}
	var items []captions.TimingItem
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &items)
	} else {
		err = yaml.Unmarshal(data, &items)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse timings: %w", err)
	}
	return items, nil
}

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and worker pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(root.configFile)
			if err != nil {
				return err
			}
			if root.logLevel != "" {
				cfg.LogLevel = root.logLevel
			}
			config.SetupLogging(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			return server.Run(cmd.Context(), cfg)
		},
	}
}
