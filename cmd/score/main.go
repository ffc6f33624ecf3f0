// Command score computes a financial health score from a JSON snapshot
// file, without touching any storage backend. Useful for debugging scoring
// questions against exported data.
//
// Usage:
//
//	score -input snapshot.json -date 2025-06-15
//
// The snapshot file holds the four record collections:
//
//	{"transactions": [...], "budgets": [...], "goals": [...], "bills": [...]}
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/finhealth/internal/domain"
	"github.com/dvloznov/finhealth/internal/health"
	"github.com/dvloznov/finhealth/internal/logger"
)

type snapshot struct {
	Transactions []domain.Transaction `json:"transactions"`
	Budgets      []domain.Budget      `json:"budgets"`
	Goals        []domain.Goal        `json:"goals"`
	Bills        []domain.Bill        `json:"bills"`
}

func main() {
	var (
		input = flag.String("input", "-", "Snapshot JSON file, or - for stdin")
		date  = flag.String("date", "", "Evaluation date as YYYY-MM-DD (default today, UTC)")
	)
	flag.Parse()

	log := logger.New()

	evaluationDate := civil.DateOf(time.Now().UTC())
	if *date != "" {
		d, err := civil.ParseDate(*date)
		if err != nil {
			log.Fatal().Err(err).Str("date", *date).Msg("Invalid evaluation date")
		}
		evaluationDate = d
	}

	var reader io.Reader = os.Stdin
	if *input != "-" {
		f, err := os.Open(*input)
		if err != nil {
			log.Fatal().Err(err).Str("input", *input).Msg("Failed to open snapshot")
		}
		defer f.Close()
		reader = f
	}

	var snap snapshot
	if err := json.NewDecoder(reader).Decode(&snap); err != nil {
		log.Fatal().Err(err).Msg("Failed to decode snapshot")
	}

	score, err := health.Calculate(snap.Transactions, snap.Budgets, snap.Goals, snap.Bills, evaluationDate)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to compute score")
	}

	out, err := json.MarshalIndent(score, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode score")
	}
	fmt.Println(string(out))
}
