package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/DeusData/semgraph/internal/claim"
	"github.com/DeusData/semgraph/internal/driver"
	"github.com/DeusData/semgraph/internal/observer"
	"github.com/DeusData/semgraph/internal/sink"
)

var version = "dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Println("semgraph", version)
		os.Exit(0)
	}

	var (
		configPath   = flag.String("config", "", "optional YAML config with run defaults")
		manifestPath = flag.String("manifest", "", "YAML manifest of compilation units")
		dbPath       = flag.String("db", "semgraph.db", "output graph database")
		claimsPath   = flag.String("claims", "", "shared claims database; empty claims everything")
		claimant     = flag.String("claimant", "semgraph", "claimant identity for this run")
		workers      = flag.Int("workers", 4, "concurrent compilation units")
		strict       = flag.Bool("strict-builtins", false, "fail on unknown builtin types")
	)
	flag.Parse()
	if *manifestPath == "" {
		log.Fatal("missing -manifest")
	}

	units, err := driver.LoadManifest(*manifestPath)
	if err != nil {
		log.Fatalf("manifest err=%v", err)
	}

	dropWraiths := false
	if *configPath != "" {
		cfg, err := observer.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("config err=%v", err)
		}
		if cfg.Claimant != "" {
			*claimant = cfg.Claimant
		}
		*strict = *strict || cfg.StrictBuiltins
		dropWraiths = cfg.DropRedundantWraiths
	}

	out, err := sink.OpenSQLite(*dbPath)
	if err != nil {
		log.Fatalf("sink open err=%v", err)
	}

	var client claim.Client
	if *claimsPath != "" {
		client, err = claim.OpenSQLite(*claimsPath)
		if err != nil {
			log.Fatalf("claims open err=%v", err)
		}
	} else {
		static := claim.NewStatic()
		static.ProcessUnknown = true
		client = static
	}

	runErr := driver.Run(context.Background(), units, driver.Options{
		Workers:              *workers,
		Client:               client,
		Sink:                 sink.NewLocked(out),
		Claimant:             *claimant,
		StrictBuiltins:       *strict,
		DropRedundantWraiths: dropWraiths,
	})
	client.Close()
	out.Close()
	if runErr != nil {
		log.Fatalf("driver err=%v", runErr)
	}
}
