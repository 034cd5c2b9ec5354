package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/akamensky/argparse"
	log "github.com/sirupsen/logrus"

	"github.com/skyhookml/yolokit/app"
	"github.com/skyhookml/yolokit/predictions"
	"github.com/skyhookml/yolokit/skyhook"
)

func main() {
	parser := argparse.NewParser("yolo-drawpreds", "Draw JSON predictions onto their images")
	dir := parser.String("d", "dir", &argparse.Options{Help: "Directory of <name>.json and <name>.<image ext> pairs", Default: "."})
	output := parser.String("o", "output", &argparse.Options{Help: "Output directory (default <dir>/predictions_output)"})
	ledgerPath := parser.String("", "ledger", &argparse.Options{Help: "Record the run in this SQLite ledger"})
	logLevel := parser.String("", "log-level", &argparse.Options{Help: "Log level", Default: "info"})
	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}
	if err := skyhook.SetupLogging(*logLevel); err != nil {
		log.Fatalf("[main] %v", err)
	}

	baseDir, err := filepath.Abs(*dir)
	if err != nil {
		log.Fatalf("[main] %v", err)
	}
	outputDir := *output
	if outputDir == "" {
		outputDir = filepath.Join(baseDir, "predictions_output")
	}

	summary, err := predictions.ProcessDir(baseDir, outputDir)
	app.WithLedger(*ledgerPath, func(l *app.Ledger) (string, error) {
		return l.RecordDrawing(summary, map[string]string{"dir": baseDir, "output": outputDir}, err)
	})
	if err != nil {
		log.Fatalf("[main] %v", err)
	}
	fmt.Printf("\n%s\n", summary)
}
