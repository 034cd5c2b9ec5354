package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/akamensky/argparse"
	log "github.com/sirupsen/logrus"

	"github.com/skyhookml/yolokit/app"
	"github.com/skyhookml/yolokit/skyhook"
)

func main() {
	parser := argparse.NewParser("yolo-ledger", "Serve the run ledger over HTTP")
	dbPath := parser.String("", "db", &argparse.Options{Help: "SQLite ledger", Default: "./yolokit.sqlite3"})
	addr := parser.String("", "addr", &argparse.Options{Help: "bind address", Default: ":8080"})
	logLevel := parser.String("", "log-level", &argparse.Options{Help: "Log level", Default: "info"})
	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}
	if err := skyhook.SetupLogging(*logLevel); err != nil {
		log.Fatalf("[main] %v", err)
	}

	ledger, err := app.OpenLedger(*dbPath)
	if err != nil {
		log.Fatalf("[main] %v", err)
	}
	defer ledger.Close()

	http.Handle("/", app.NewRouter(ledger))
	log.Printf("starting on %s", *addr)
	if err := http.ListenAndServe(*addr, nil); err != nil {
		log.Fatalf("[main] %v", err)
	}
}
