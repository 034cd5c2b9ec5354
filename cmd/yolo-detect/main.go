package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/akamensky/argparse"
	log "github.com/sirupsen/logrus"

	"github.com/skyhookml/yolokit/app"
	"github.com/skyhookml/yolokit/detector"
	"github.com/skyhookml/yolokit/skyhook"
)

func main() {
	parser := argparse.NewParser("yolo-detect", "YOLO Object Detection")
	model := parser.String("m", "model", &argparse.Options{Help: "Path to custom YOLO model (e.g., best.pt or best.onnx)"})
	confidence := parser.Float("c", "confidence", &argparse.Options{Help: "Confidence threshold (0.0-1.0)", Default: 0.25})
	output := parser.String("o", "output", &argparse.Options{Help: "Output directory", Default: "./results"})
	source := parser.String("s", "source", &argparse.Options{Help: "Image or video to process (prompted for if absent)"})
	python := parser.String("", "python", &argparse.Options{Help: "Python interpreter with ultralytics installed", Default: "python3"})
	imageSize := parser.Int("", "imgsz", &argparse.Options{Help: "Input size of an ONNX model", Default: detector.DefaultImageSize})
	ortLib := parser.String("", "onnxruntime", &argparse.Options{Help: "onnxruntime shared library (default $" + detector.SharedLibraryEnv + ")"})
	ledgerPath := parser.String("", "ledger", &argparse.Options{Help: "Record the run in this SQLite ledger"})
	logLevel := parser.String("", "log-level", &argparse.Options{Help: "Log level", Default: "warning"})
	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}
	if err := skyhook.SetupLogging(*logLevel); err != nil {
		log.Fatalf("[main] %v", err)
	}
	if *confidence < 0 || *confidence > 1 {
		fmt.Println("Error: confidence must be between 0.0 and 1.0")
		os.Exit(1)
	}

	prompter := detector.NewPrompter(os.Stdin, os.Stdout)
	filePath := strings.TrimSpace(*source)
	if filePath == "" {
		filePath, _ = prompter.Prompt("Enter file path (image or video): ")
	}
	if filePath == "" {
		fmt.Println("Error: No file path provided!")
		os.Exit(1)
	}
	if err := detector.ValidateFile(filePath); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	modelName := detector.ResolveModel(*model, prompter, os.Stdout)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	report, err := run(ctx, modelName, filePath, *output, *confidence, detector.LoadOptions{
		Python:        *python,
		ImageSize:     *imageSize,
		SharedLibrary: *ortLib,
	})
	app.WithLedger(*ledgerPath, func(l *app.Ledger) (string, error) {
		return l.RecordDetection(report, map[string]string{
			"source": filePath,
			"model":  modelName,
			"output": *output,
		}, err)
	})
	if err != nil {
		fmt.Printf("Error during processing: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, modelName string, filePath string, output string, confidence float64, opts detector.LoadOptions) (detector.Report, error) {
	fmt.Printf("Loading model: %s\n", modelName)
	p, err := detector.Load(ctx, modelName, opts)
	if err != nil {
		return detector.Report{}, err
	}
	defer p.Close()
	fmt.Println("Model loaded successfully!")

	names := p.Names()
	classes := make([]string, len(names))
	for i := range classes {
		classes[i] = detector.ClassName(names, i)
	}
	fmt.Printf("Model classes: %v\n", classes)

	return detector.ProcessFile(ctx, p, filePath, output, confidence, os.Stdout)
}
