package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/modelingevolution/hailopipe"
	"github.com/modelingevolution/hailopipe/internal/accel"
	hpconfig "github.com/modelingevolution/hailopipe/internal/config"
	"github.com/modelingevolution/hailopipe/internal/decode"
	"github.com/modelingevolution/hailopipe/internal/logging"
	"github.com/modelingevolution/hailopipe/internal/yuv"
)

var (
	runModelPath string
	runSimulate  bool
	runRate      int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load a pipeline and feed it frames until interrupted",
	Long: `run loads a pipeline against an in-memory stub device and decoder
and submits synthetic frames at --rate Hz, printing the stats table once
a second until SIGINT/SIGTERM. This build has no real accelerator
driver: with --model set and --simulate not given, run exits with an
error.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd)
	},
}

func init() {
	runCmd.Flags().StringVar(&runModelPath, "model", "", "path to the compiled model (.hef)")
	runCmd.Flags().BoolVar(&runSimulate, "simulate", false, "drive an in-memory stub accelerator instead of real hardware")
	runCmd.Flags().IntVar(&runRate, "rate", 30, "synthetic submission rate in Hz (--simulate only)")
}

func runPipeline(cmd *cobra.Command) error {
	raw, err := hpconfig.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if runModelPath != "" {
		raw.ModelPath = runModelPath
	}

	cfg, err := raw.ToPipelineConfig()
	if err != nil {
		return fmt.Errorf("translate config: %w", err)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Format = raw.Log.Format
	logger := logging.NewLogger(logCfg)
	cfg.Logger = logger

	var device accel.Device
	if runSimulate || raw.ModelPath == "" {
		cfg.Converter = yuv.Passthrough{}
		cfg.Decoder = decode.NewStubDecoder(3, decode.Size{W: 160, H: 160})
		device = accel.NewStub(accel.StubConfig{Metadata: accel.Metadata{
			InputWidth: 640, InputHeight: 640, InputChannels: 3,
			FrameSize: 640 * 640 * 3, NumOutputs: 4,
			OutputWidths: []int{20, 40, 80, 160},
			OutputQuant: []accel.OutputQuant{
				{Scale: 1}, {Scale: 1}, {Scale: 1}, {Scale: 1},
			},
		}})
	} else {
		return fmt.Errorf("run: no real accelerator driver wired in this build; pass --simulate")
	}

	p, err := hailopipe.Load(raw.ModelPath, cfg, device)
	if err != nil {
		return fmt.Errorf("load pipeline: %w", err)
	}

	if err := p.Start(func(*hailopipe.SegmentationResult, any) {}, nil, 0, 0); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	submitTicker := time.NewTicker(time.Second / time.Duration(max(runRate, 1)))
	defer submitTicker.Stop()
	reportTicker := time.NewTicker(time.Second)
	defer reportTicker.Stop()

	frame := make([]byte, 640*480*3/2)
	var frameID uint64

	logger.WithField("model", raw.ModelPath).WithField("simulate", runSimulate).Info("pipeline started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			p.Stop()
			return nil
		case <-submitTicker.C:
			roi := hailopipe.Rect{X: 0, Y: 0, W: 640, H: 480}
			id := hailopipe.FrameIdentifier{CameraID: 1, FrameID: frameID}
			frameID++
			if err := p.Submit(frame, 640, 480, roi, id, 0); err != nil {
				logger.WithStage("write").Warnf("submit: %v", err)
			}
		case <-reportTicker.C:
			_ = p.Stats().Report(cmd.OutOrStdout())
		}
	}
}
