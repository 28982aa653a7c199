package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// CliArgs stores the parsed command line arguments.
type CliArgs struct {
	// SourceId is the video file to read frames from.
	// See https://pkg.go.dev/gocv.io/x/gocv#VideoCaptureFile
	SourceId string

	// Path is the output path template, e.g. "out/frame_{n:05}.webp".
	Path string

	// Parents creates missing parent directories of the output path when nonzero.
	Parents int

	// Start and End select the frame range [Start, End). End <= 0 means the
	// length of the clip.
	Start int
	End   int

	// Workers is the number of frames requested concurrently.
	Workers int

	// Width, Height and Length size the synthetic test pattern.
	Width  int
	Height int
	Length int

	TeardownTimeout time.Duration

	// LogLevelString can be used to override the default log level.
	LogLevelString string

	// logLevel is the numeric representation of the log level.
	logLevel logrus.Level
}

func (args *CliArgs) Validate() error {
	return flattenErrors(
		args.ValidateLogLevelString(),
		args.ValidateRange(),
		args.ValidateWorkers(),
	)
}

func (args *CliArgs) ValidateRange() error {
	if args.Start < 0 {
		return errors.Errorf("start frame must not be negative, got %d", args.Start)
	}
	if args.End > 0 && args.End < args.Start {
		return errors.Errorf("end frame %d is before start frame %d", args.End, args.Start)
	}
	return nil
}

func (args *CliArgs) ValidateWorkers() error {
	if args.Workers < 1 {
		return errors.Errorf("need at least one worker, got %d", args.Workers)
	}
	return nil
}

func (args *CliArgs) ValidatePattern() error {
	if args.Width <= 0 || args.Height <= 0 {
		return errors.Errorf("invalid pattern size %dx%d", args.Width, args.Height)
	}
	if args.Length <= 0 {
		return errors.Errorf("invalid pattern length %d", args.Length)
	}
	return nil
}

func (args *CliArgs) ValidateLogLevelString() error {
	l, err := logrus.ParseLevel(args.LogLevelString)
	if err != nil {
		return err
	}

	args.logLevel = l
	return nil
}

// FrameRange resolves [Start, End) against a clip of numFrames frames.
func (args *CliArgs) FrameRange(numFrames int) (int, int, error) {
	end := args.End
	if end <= 0 {
		if numFrames <= 0 {
			return 0, 0, errors.New("clip length is unknown, set the end frame")
		}
		end = numFrames
	}

	if numFrames > 0 && end > numFrames {
		return 0, 0, errors.Errorf("end frame %d is past the end of the clip (%d frames)", end, numFrames)
	}
	if args.Start > end {
		return 0, 0, errors.Errorf("start frame %d is past end frame %d", args.Start, end)
	}

	return args.Start, end, nil
}

func outputFlags(args *CliArgs) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "path",
			Aliases:     []string{"p"},
			Usage:       "output path template; {n} is replaced by the frame number, e.g., out/frame_{n:05}.webp",
			EnvVars:     []string{"WEBPFX_PATH"},
			Required:    true,
			Destination: &args.Path,
		},
		&cli.IntFlag{
			Name:        "parents",
			Usage:       "create missing parent directories of the output path (0 or 1)",
			Value:       args.Parents,
			Destination: &args.Parents,
		},
		&cli.IntFlag{
			Name:        "start",
			Usage:       "first frame to encode",
			Value:       args.Start,
			Destination: &args.Start,
		},
		&cli.IntFlag{
			Name:        "end",
			Usage:       "frame to stop before; 0 means the end of the clip",
			Value:       args.End,
			Destination: &args.End,
		},
		&cli.IntFlag{
			Name:        "workers",
			Aliases:     []string{"w"},
			Usage:       "number of frames to process concurrently",
			EnvVars:     []string{"WEBPFX_WORKERS"},
			Value:       args.Workers,
			Destination: &args.Workers,
		},
		&cli.DurationFlag{
			Name:        "teardown-timeout",
			Usage:       "how long to wait for in-flight frames after an interrupt or a failure; a finished range waits for them without limit",
			Value:       args.TeardownTimeout,
			Destination: &args.TeardownTimeout,
		},
	}
}

func main() {
	args := &CliArgs{
		SourceId:        "",
		Parents:         0,
		Workers:         1,
		Width:           320,
		Height:          240,
		Length:          25,
		TeardownTimeout: defaultTeardownTimeout,
		LogLevelString:  "INFO",
		logLevel:        logrus.InfoLevel,
	}

	app := &cli.App{
		Name:  "webpfx",
		Usage: "write video frames as lossless WebP images",

		Before: func(c *cli.Context) error {
			err := args.ValidateLogLevelString()
			if err != nil {
				return err
			}

			initLogger(args.logLevel)
			return nil
		},

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       fmt.Sprintf("log level: [%s]", allLogLevels),
				EnvVars:     []string{"WEBPFX_LOG_LEVEL"},
				Value:       args.LogLevelString,
				Destination: &args.LogLevelString,
			},
		},

		Commands: []*cli.Command{
			{
				Name:  "encode",
				Usage: "Encode frames of a video file",

				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:        "source",
						Aliases:     []string{"s"},
						Usage:       "source video file name or URL",
						Required:    true,
						Destination: &args.SourceId,
					},
				}, outputFlags(args)...),

				Before: func(c *cli.Context) error {
					return args.Validate()
				},

				Action: func(c *cli.Context) error {
					logger.Infof("Running with arguments: %+v", *args)
					return encodeMain(c.Context, args, videoFileSourceMaker(args.SourceId))
				},
			},

			{
				Name:  "pattern",
				Usage: "Encode frames of a synthetic RGB test pattern",

				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:        "width",
						Value:       args.Width,
						Destination: &args.Width,
					},
					&cli.IntFlag{
						Name:        "height",
						Value:       args.Height,
						Destination: &args.Height,
					},
					&cli.IntFlag{
						Name:        "length",
						Usage:       "number of frames in the pattern clip",
						Value:       args.Length,
						Destination: &args.Length,
					},
				}, outputFlags(args)...),

				Before: func(c *cli.Context) error {
					return flattenErrors(args.Validate(), args.ValidatePattern())
				},

				Action: func(c *cli.Context) error {
					logger.Infof("Running with arguments: %+v", *args)
					return encodeMain(c.Context, args, patternSourceMaker(args.Width, args.Height, args.Length))
				},
			},

			{
				Name:      "inspect",
				Usage:     "Decode WebP files and report their size",
				ArgsUsage: "FILE...",

				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return errors.New("no files given")
					}

					var errs []error
					for _, path := range c.Args().Slice() {
						summary, err := InspectWebPFile(path)
						if err != nil {
							logger.WithError(err).Errorf("Inspect failed")
							errs = append(errs, err)
							continue
						}

						logger.
							WithField("path", path).
							WithField("lossless", summary.Lossless).
							Infof("%dx%d %s", summary.Width, summary.Height, summary.ColorModel)
					}
					return flattenErrors(errs...)
				},
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Println("Application failed:", err.Error())
		os.Exit(1)
	}
}

// flattenErrors joins the non-nil errors into one, keeping a lone error as is.
func flattenErrors(errs ...error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}

	var finalErr error
	for _, err := range errs {
		if err == nil {
			continue
		}

		if finalErr != nil {
			finalErr = errors.Errorf("%v, %v", finalErr, err)
		} else {
			finalErr = err
		}
	}
	return finalErr
}
