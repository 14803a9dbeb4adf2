//go:build ignore

// Generates a synthetic image corpus for benchmarking the indexing
// pipeline against realistic directory shapes.
// Usage: go run scripts/generate-test-images.go -images 1000 -output testdata/bench
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
)

var (
	numImages = flag.Int("images", 1000, "Number of images to generate")
	outputDir = flag.String("output", "testdata/bench", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
	maxEdge   = flag.Int("max-edge", 512, "Maximum image edge in pixels")
	dirs      = flag.Int("dirs", 20, "Number of subdirectories to spread images over")
)

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	for i := 0; i < *numImages; i++ {
		sub := fmt.Sprintf("set-%03d", rng.Intn(*dirs))
		dir := filepath.Join(*outputDir, sub)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		w := 32 + rng.Intn(*maxEdge-32)
		h := 32 + rng.Intn(*maxEdge-32)
		path := filepath.Join(dir, fmt.Sprintf("img-%05d.png", i))
		if err := writeNoise(path, w, h, rng); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		if (i+1)%100 == 0 {
			fmt.Printf("generated %d/%d\n", i+1, *numImages)
		}
	}
	fmt.Printf("done: %d images under %s\n", *numImages, *outputDir)
}

// writeNoise renders a gradient with random noise so images differ in both
// perceptual and semantic hash space.
func writeNoise(path string, w, h int, rng *rand.Rand) error {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	baseR := uint8(rng.Intn(256))
	baseG := uint8(rng.Intn(256))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: baseR + uint8(x*255/w/4),
				G: baseG + uint8(y*255/h/4),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
