package main

import (
	"context"
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	log "github.com/sirupsen/logrus"

	"github.com/skyhookml/yolokit/app"
	"github.com/skyhookml/yolokit/detector"
	"github.com/skyhookml/yolokit/skyhook"
)

func main() {
	parser := argparse.NewParser("yolo-evaluate", "YOLO object detection with custom weights")
	testImage := parser.String("", "test_image", &argparse.Options{Help: "Path to the test image", Required: true})
	weights := parser.String("", "weights", &argparse.Options{Help: "Path to the model weights", Required: true})
	ledgerPath := parser.String("", "ledger", &argparse.Options{Help: "Record the run in this SQLite ledger"})
	logLevel := parser.String("", "log-level", &argparse.Options{Help: "Log level", Default: "warning"})
	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}
	if err := skyhook.SetupLogging(*logLevel); err != nil {
		log.Fatalf("[main] %v", err)
	}

	err := detector.Evaluate(context.Background(), *weights, *testImage, os.Stdout, nil)
	app.WithLedger(*ledgerPath, func(l *app.Ledger) (string, error) {
		run := app.Run{
			Tool: "evaluate",
			Args: map[string]string{"weights": *weights, "test_image": *testImage},
		}
		if err != nil {
			run.Status = app.StatusFailed
			run.Error = err.Error()
		}
		return l.Record(run)
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
