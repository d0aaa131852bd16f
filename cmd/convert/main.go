// Command convert runs a single COLMAP text model -> transforms.json conversion on the local filesystem.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/NeRF-or-Nothing/sfm-converter/internal/log"
	"github.com/NeRF-or-Nothing/sfm-converter/internal/ngp"
)

func newApp(fs afero.Fs, outputPaths ...string) *cli.App {
	return &cli.App{
		Name:  "convert",
		Usage: "Converts a COLMAP text model to an instant-ngp transforms.json",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "model",
				Value: "sparse/0",
				Usage: "directory holding cameras.txt and images.txt",
			},
			&cli.StringFlag{
				Name:  "cameras",
				Usage: "path to the camera table, overrides --model",
			},
			&cli.StringFlag{
				Name:  "image-table",
				Usage: "path to the image table, overrides --model",
			},
			&cli.StringFlag{
				Name:  "images",
				Value: "images",
				Usage: "directory holding the source images",
			},
			&cli.StringFlag{
				Name:  "out",
				Value: ngp.TransformsFile,
				Usage: "path of the transforms.json to write",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() > 0 {
				return fmt.Errorf("unexpected arguments: %v", c.Args().Slice())
			}

			logger, err := log.NewLogger(true, c.Bool("debug"), outputPaths...)
			if err != nil {
				return err
			}
			defer logger.Sync()

			opts := ngp.OptionsForModelDir(c.String("model"), c.String("images"), c.String("out"))
			if p := c.String("cameras"); p != "" {
				opts.CamerasPath = p
			}
			if p := c.String("image-table"); p != "" {
				opts.ImagesPath = p
			}

			_, report, err := ngp.Convert(fs, opts, logger.Named("convert"))
			if err != nil {
				return err
			}
			if report.FrameCount == 0 {
				logger.Warnf("No posed image was found in %s", opts.ImageDir)
			}
			return nil
		},
	}
}

func main() {
	if err := newApp(afero.NewOsFs()).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
