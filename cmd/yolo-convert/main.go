package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/akamensky/argparse"
	log "github.com/sirupsen/logrus"

	"github.com/skyhookml/yolokit/app"
	"github.com/skyhookml/yolokit/convert"
	"github.com/skyhookml/yolokit/skyhook"
)

func main() {
	parser := argparse.NewParser("yolo-convert", "Convert per-clip pixel bounding boxes into YOLO label files")
	index := parser.String("i", "index", &argparse.Options{Help: "Clip index JSON (clip id -> frame names)", Required: true})
	annotations := parser.String("a", "annotations", &argparse.Options{Help: "Directory of <clip>.txt annotation files", Required: true})
	output := parser.String("o", "output", &argparse.Options{Help: "Label output directory", Required: true})
	images := parser.String("m", "images", &argparse.Options{Help: "Directory of <frame>.jpg images", Required: true})
	width := parser.Int("", "width", &argparse.Options{Help: "Image width (default $" + skyhook.EnvImageWidth + " or 3840)", Default: 0})
	height := parser.Int("", "height", &argparse.Options{Help: "Image height (default $" + skyhook.EnvImageHeight + " or 2160)", Default: 0})
	workers := parser.Int("w", "workers", &argparse.Options{Help: "Clips converted in parallel", Default: 1})
	strict := parser.Flag("", "strict", &argparse.Options{Help: "Exit with status 2 if anything was skipped"})
	ledgerPath := parser.String("", "ledger", &argparse.Options{Help: "Record the run in this SQLite ledger"})
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

	summary, err := convert.ConvertDataset(*index, *annotations, *output, *images, convert.Options{
		Resolution: res,
		Workers:    *workers,
	})
	app.WithLedger(*ledgerPath, func(l *app.Ledger) (string, error) {
		return l.RecordConversion(summary, map[string]string{
			"index":       *index,
			"annotations": *annotations,
			"output":      *output,
			"images":      *images,
			"resolution":  res.String(),
			"workers":     strconv.Itoa(*workers),
		}, err)
	})
	if err != nil {
		log.Fatalf("[main] %v", err)
	}
	fmt.Println(summary.String())
	if *strict && !summary.Clean() {
		os.Exit(2)
	}
}
