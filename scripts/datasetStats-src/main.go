package main

import (
	"log"
	"math"
	"os"

	"github.com/mappichat/regions-atlas/src/fileio"
	"github.com/mappichat/regions-atlas/src/project_types"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: datasetStats [dataset-file]")
	}
	data, err := fileio.LoadDatasetFile(os.Args[1])
	if err != nil {
		log.Fatal(err.Error())
	}

	values := project_types.Values(data.Data)
	total := 0.0
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		total += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	log.Printf("%d points, %d with values\n", len(data.Data), len(values))
	if len(values) > 0 {
		log.Printf("total: %g, mean: %g, min: %g, max: %g\n", total, total/float64(len(values)), lo, hi)
	}
}
