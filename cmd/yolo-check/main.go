package main

import (
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	log "github.com/sirupsen/logrus"

	"github.com/skyhookml/yolokit/skyhook"
	"github.com/skyhookml/yolokit/verify"
)

func main() {
	parser := argparse.NewParser("yolo-check", "Draw YOLO labels back onto an image to check a conversion")
	image := parser.String("i", "image", &argparse.Options{Help: "Source image", Required: true})
	label := parser.String("l", "label", &argparse.Options{Help: "YOLO label file for the image", Required: true})
	output := parser.String("o", "output", &argparse.Options{Help: "Preview image to write", Default: "preview.jpg"})
	scale := parser.Int("s", "scale", &argparse.Options{Help: "Preview size in percent", Default: verify.DefaultScalePercent})
	cropPad := parser.Int("", "crop-pad", &argparse.Options{Help: "Crop to the boxes plus this many pixels (0 disables)", Default: 0})
	width := parser.Int("", "width", &argparse.Options{Help: "Label canvas width", Default: 0})
	height := parser.Int("", "height", &argparse.Options{Help: "Label canvas height", Default: 0})
	logLevel := parser.String("", "log-level", &argparse.Options{Help: "Log level", Default: "info"})
	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}
	if err := skyhook.SetupLogging(*logLevel); err != nil {
		log.Fatalf("[main] %v", err)
	}

	res, err := skyhook.ResolutionFromEnv()
	if err != nil {
		log.Fatalf("[main] %v", err)
	}
	if *width > 0 {
		res.Width = *width
	}
	if *height > 0 {
		res.Height = *height
	}
	opts := verify.DefaultOptions()
	opts.Resolution = res
	opts.ScalePercent = *scale
	opts.CropPad = *cropPad
	if err := verify.Run(*image, *label, *output, opts); err != nil {
		log.Fatalf("[main] %v", err)
	}
	fmt.Printf("BBox check written to %s\n", *output)
}
