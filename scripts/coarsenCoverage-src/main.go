package main

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/mappichat/regions-atlas/src/engine"
	"github.com/mappichat/regions-atlas/src/utils"
	h3 "github.com/uber/h3-go/v3"
)

// coarsens a coverage file to a parent resolution; a parent cell goes to the
// region owning most of its children.
func main() {
	start := time.Now()
	if len(os.Args) < 3 {
		log.Fatal("usage: coarsenCoverage [coverage-json] [resolution]")
	}
	path := os.Args[1]
	res, err := strconv.Atoi(os.Args[2])
	if err != nil {
		log.Fatal(err.Error())
	}

	log.Print("reading json")
	old := engine.Coverage{}
	if err := utils.ReadJsonFile(path, &old); err != nil {
		log.Fatal(err.Error())
	}
	if res >= old.Resolution {
		log.Fatalf("resolution %d is not coarser than %d", res, old.Resolution)
	}

	log.Printf("converting coverage to resolution %d\n", res)
	votes := map[string]map[string]int{}
	for cell, region := range old.CellToRegion {
		parent := h3.ToString(h3.ToParent(h3.FromString(cell), res))
		if votes[parent] == nil {
			votes[parent] = map[string]int{}
		}
		votes[parent][region]++
	}

	coarse := engine.Coverage{
		Resolution:   res,
		CellToRegion: map[string]string{},
		RegionCells:  map[string][]string{},
	}
	for parent, counts := range votes {
		regions := make([]string, 0, len(counts))
		for region := range counts {
			regions = append(regions, region)
		}
		sort.Strings(regions)
		best := regions[0]
		for _, region := range regions[1:] {
			if counts[region] > counts[best] {
				best = region
			}
		}
		coarse.CellToRegion[parent] = best
		coarse.RegionCells[best] = append(coarse.RegionCells[best], parent)
	}
	for region := range coarse.RegionCells {
		sort.Strings(coarse.RegionCells[region])
	}

	log.Print("marshalling json")
	if err := utils.WriteAsJsonFile(coarse, fmt.Sprintf("./coverage%d.json", res)); err != nil {
		log.Fatal(err.Error())
	}

	log.Printf("total time: %s\n", time.Since(start))
}
