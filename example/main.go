package main

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/annadex/hnsw"
)

func main() {
	g := hnsw.NewGraph()

	rng := rand.New(rand.NewSource(1))
	const dims = 64
	for i := int32(0); i < 1000; i++ {
		vec := make([]float32, dims)
		for j := range vec {
			vec[j] = rng.Float32()
		}
		if err := g.Insert(vec, i); err != nil {
			log.Fatal(err)
		}
	}

	query := make([]float32, dims)
	for j := range query {
		query[j] = rng.Float32()
	}
	nearest, err := g.Search(query, 5)
	if err != nil {
		log.Fatal(err)
	}
	for _, n := range nearest {
		d, _ := hnsw.EuclideanDistance(query, n.Value)
		fmt.Printf("id=%d dist=%f\n", n.ID, d)
	}

	dir, err := os.MkdirTemp("", "hnsw-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	region, err := hnsw.OpenRegion(filepath.Join(dir, hnsw.DefaultRegionPath))
	if err != nil {
		log.Fatal(err)
	}
	defer region.Close()

	if err := g.Store(region); err != nil {
		log.Fatal(err)
	}

	reloaded := hnsw.NewGraph()
	if err := reloaded.Load(region); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("reloaded %d vectors\n", reloaded.Len())
}
