// hwnet-train: trains a highway classifier on a synthetic dataset
//
// Usage:
//
//	hwnet-train -config=configs/demo.yaml -epochs=5 -blocks=4 -width=32
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"hwnet/highway"
	"hwnet/session"
	"hwnet/utils"

	"gonum.org/v1/gonum/mat"
)

var (
	configPath = flag.String("config", "", "Path to YAML config (defaults are used when empty)")
	epochs     = flag.Int("epochs", 0, "Number of training epochs")
	batchSize  = flag.Int("batch-size", 0, "Mini-batch size")
	blocks     = flag.Int("blocks", 0, "Number of highway blocks")
	width      = flag.Int("width", 0, "Highway block width")
	keepProb   = flag.Float64("keep-prob", 0, "Dropout keep probability")
	noDecay    = flag.Bool("no-decay", false, "Use a constant learning rate")
	samples    = flag.Int("samples", 0, "Number of synthetic samples")
	seed       = flag.Int64("seed", 0, "Random seed")
	verbose    = flag.Bool("verbose", true, "Verbose output")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	utils.Verbose = cfg.Verbose

	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                    Highway Classifier Trainer                ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nConfiguration:\n")
	fmt.Printf("  Input/Output:  %d/%d\n", cfg.Model.InputDim, cfg.Model.OutputDim)
	fmt.Printf("  Blocks:        %d x %d\n", cfg.Model.HighwayBlocks, cfg.Model.HighwayWidth)
	fmt.Printf("  Epochs:        %d\n", cfg.Train.Epochs)
	fmt.Printf("  Batch size:    %d\n", cfg.Train.BatchSize)
	fmt.Printf("  Keep prob:     %.2f\n", cfg.Train.KeepProb)
	fmt.Printf("  LR decay:      %v\n", cfg.Train.Decay)
	fmt.Printf("  Samples:       %d\n", cfg.Data.Samples)
	fmt.Printf("  Seed:          %d\n", cfg.Seed)
	fmt.Println()

	sess := session.New(session.WithSeed(cfg.Seed), session.WithVerbose(cfg.Verbose))
	defer sess.Close()
	fmt.Println(sess)

	clf, err := highway.New(sess, highway.Config{
		InputDim:      cfg.Model.InputDim,
		OutputDim:     cfg.Model.OutputDim,
		HighwayBlocks: cfg.Model.HighwayBlocks,
		HighwayWidth:  cfg.Model.HighwayWidth,
	})
	if err != nil {
		return fmt.Errorf("building model: %w", err)
	}
	fmt.Printf("Model: %s, %d trainable parameters\n", clf.Config(), clf.NumParams())

	fmt.Printf("Generating %d synthetic samples...\n", cfg.Data.Samples)
	start := time.Now()
	train, val := generateData(cfg)
	dataTime := time.Since(start)

	fmt.Println("\nStarting training...")
	log, err := clf.Fit(train.X, train.Y, highway.FitOptions{
		Validation: val,
		Epochs:     cfg.Train.Epochs,
		BatchSize:  cfg.Train.BatchSize,
		Decay:      cfg.Train.Decay,
		KeepProb:   cfg.Train.KeepProb,
	})
	if err != nil {
		return fmt.Errorf("training: %w", err)
	}
	if last, ok := log.Last(); ok {
		fmt.Printf("\nTraining complete! Final train_loss: %.4f | train_acc: %.4f\n", last.Loss, last.Acc)
	}

	if val != nil {
		classes, err := clf.PredictClasses(val.X, cfg.Train.BatchSize)
		if err != nil {
			return fmt.Errorf("prediction: %w", err)
		}
		fmt.Printf("Validation accuracy: %.4f\n", accuracy(classes, val.Y))
	}

	stats := clf.Stats()
	stats.DataLoadingTime = dataTime
	utils.PrintTimingStats(&stats)
	return nil
}

func loadConfig() (*utils.Config, error) {
	cfg := utils.Default()
	if *configPath != "" {
		var err error
		if cfg, err = utils.Load(*configPath); err != nil {
			return nil, err
		}
	}
	o := utils.Overrides{
		Epochs:    *epochs,
		BatchSize: *batchSize,
		Blocks:    *blocks,
		Width:     *width,
		KeepProb:  *keepProb,
		NoDecay:   *noDecay,
		Samples:   *samples,
		Seed:      *seed,
	}
	// -verbose defaults to true, so only an explicit flag overrides the file.
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "verbose" {
			o.Verbose = verbose
		}
	})
	cfg.ApplyOverrides(o)
	return cfg, cfg.Validate()
}

// generateData draws Gaussian clusters, one random center per class, and
// holds out the configured validation fraction.
func generateData(cfg *utils.Config) (*highway.Dataset, *highway.Dataset) {
	rng := rand.New(rand.NewSource(cfg.Seed + 1))
	in, out, n := cfg.Model.InputDim, cfg.Model.OutputDim, cfg.Data.Samples

	centers := mat.NewDense(out, in, nil)
	for k := 0; k < out; k++ {
		row := centers.RawRowView(k)
		for j := range row {
			row[j] = rng.NormFloat64() * 2
		}
	}
	x := mat.NewDense(n, in, nil)
	y := mat.NewDense(n, out, nil)
	for i := 0; i < n; i++ {
		k := rng.Intn(out)
		row, c := x.RawRowView(i), centers.RawRowView(k)
		for j := range row {
			row[j] = c[j] + rng.NormFloat64()*cfg.Data.Spread
		}
		y.Set(i, k, 1)
	}

	nVal := int(float64(n) * cfg.Data.Validation)
	if nVal == 0 || nVal == n {
		return &highway.Dataset{X: x, Y: y}, nil
	}
	nTrain := n - nVal
	train := &highway.Dataset{
		X: x.Slice(0, nTrain, 0, in).(*mat.Dense),
		Y: y.Slice(0, nTrain, 0, out).(*mat.Dense),
	}
	val := &highway.Dataset{
		X: x.Slice(nTrain, n, 0, in).(*mat.Dense),
		Y: y.Slice(nTrain, n, 0, out).(*mat.Dense),
	}
	return train, val
}

func accuracy(classes []int, labels *mat.Dense) float64 {
	correct := 0
	for i, k := range classes {
		if labels.At(i, k) == 1 {
			correct++
		}
	}
	return float64(correct) / float64(len(classes))
}
