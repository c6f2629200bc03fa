package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli"

	"camsim/export"
	"camsim/log"
	"camsim/render"
	"camsim/scene"
	"camsim/sim"
)

var logger = log.New("camsim")

func main() {
	app := cli.NewApp()
	app.Name = "camsim"
	app.Usage = "simulate RGB and PMD depth cameras viewing an animated scene"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "simulate",
			Usage: "render frames of the built-in demo scene",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "width",
					Value: 640,
					Usage: "image width in pixels",
				},
				cli.IntFlag{
					Name:  "height",
					Value: 480,
					Usage: "image height in pixels",
				},
				cli.IntFlag{
					Name:  "frames",
					Value: 30,
					Usage: "number of frames to simulate",
				},
				cli.BoolFlag{
					Name:  "pmd",
					Usage: "simulate a PMD depth camera instead of an RGB camera",
				},
				cli.IntFlag{
					Name:  "oversample",
					Value: 1,
					Usage: "spatial oversampling factor, must be odd",
				},
				cli.StringFlag{
					Name:  "out, o",
					Value: "out",
					Usage: "output directory for exported frames",
				},
				cli.StringFlag{
					Name:  "format",
					Value: "png",
					Usage: "image format: png, bmp, webp, ppm, pfm or csv",
				},
				cli.BoolFlag{
					Name:  "fallback-adapter",
					Usage: "force the fallback (software) WebGPU adapter",
				},
			},
			Action: simulate,
		},
	}
	if err := app.Run(os.Args); err != nil {
		logger.Fatal(err)
	}
}

func setupLogging(ctx *cli.Context) {
	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}
	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}
}

func simulate(ctx *cli.Context) error {
	setupLogging(ctx)

	if err := os.MkdirAll(ctx.String("out"), 0o755); err != nil {
		return err
	}

	gpu, err := newGPUContext(ctx.Bool("fallback-adapter"))
	if err != nil {
		return err
	}
	defer gpu.release()
	backend, err := render.NewWGPUBackend(gpu.device, gpu.queue)
	if err != nil {
		return err
	}

	simulator := sim.NewSimulator(backend)
	simulator.SetProjection(scene.FromOpeningAngle(
		ctx.Int("width"), ctx.Int("height"), 70))

	pipeline := sim.NewPipeline()
	pipeline.SpatialSamplesX = ctx.Int("oversample")
	pipeline.SpatialSamplesY = ctx.Int("oversample")
	simulator.SetPipeline(pipeline)

	output := sim.NewOutput()
	if ctx.Bool("pmd") {
		output = sim.Output{PMD: true, PMDCoordinates: true}
		simulator.SetChipTiming(sim.ChipTiming{
			ExposureTime: 1000e-6,
			ReadoutTime:  1000e-6,
			PauseTime:    0.036,
		})
	}
	simulator.SetOutput(output)

	frames := ctx.Int("frames")
	duration := simulator.FrameDuration() * int64(frames)
	sc, cameraAnimation, err := buildDemoScene(backend, duration)
	if err != nil {
		return err
	}
	simulator.SetScene(sc)
	simulator.SetCameraAnimation(cameraAnimation)

	if err := sim.ValidateConfig(sc, pipeline, output); err != nil {
		return err
	}

	exporter := export.NewExporter(4)
	ext := "." + ctx.String("format")
	logger.Noticef("simulating %d frames at %dx%d, %.2f fps",
		frames, ctx.Int("width"), ctx.Int("height"), simulator.FramesPerSecond())

	for frame := 0; frame < frames; frame++ {
		timestamp := simulator.NextFrameTimestamp()
		simulator.Simulate(timestamp)

		if ctx.Bool("pmd") {
			tex, ok := simulator.GetPMD(-1)
			if !ok {
				return fmt.Errorf("pmd result unavailable for frame %d", frame)
			}
			buf, err := simulator.ReadBuffer(tex, []string{"range", "amplitude", "intensity", "unused"})
			if err != nil {
				return err
			}
			exporter.Export(framePath(ctx.String("out"), "pmd", frame, ".csv"), buf)
		} else {
			tex, ok := simulator.GetRGB(-1)
			if !ok {
				return fmt.Errorf("rgb result unavailable for frame %d", frame)
			}
			buf, err := simulator.ReadBuffer(tex, []string{"r", "g", "b", "a"})
			if err != nil {
				return err
			}
			exporter.Export(framePath(ctx.String("out"), "rgb", frame, ext), buf)
		}
		logger.Infof("frame %d done, timestamp %d us", frame, timestamp)
	}
	if err := exporter.Wait(); err != nil {
		return err
	}
	simulator.Release()
	return nil
}

func framePath(dir, name string, frame int, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%04d%s", name, frame, ext))
}
