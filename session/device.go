package session

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// Device describes the host the session computes on. There is only one
// compute target (the CPU); the description is informational.
type Device struct {
	Brand         string
	Vendor        string
	PhysicalCores int
	LogicalCores  int
	GOMAXPROCS    int
	// SIMD extensions gonum's assembly kernels can take advantage of.
	Features []string
}

var simdFeatures = []struct {
	id   cpuid.FeatureID
	name string
}{
	{cpuid.SSE2, "sse2"},
	{cpuid.AVX, "avx"},
	{cpuid.AVX2, "avx2"},
	{cpuid.FMA3, "fma3"},
	{cpuid.AVX512F, "avx512f"},
	{cpuid.ASIMD, "asimd"},
}

// DetectDevice inspects the current CPU.
func DetectDevice() Device {
	d := Device{
		Brand:         cpuid.CPU.BrandName,
		Vendor:        cpuid.CPU.VendorString,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
		GOMAXPROCS:    runtime.GOMAXPROCS(0),
	}
	if d.Brand == "" {
		d.Brand = runtime.GOARCH
	}
	for _, f := range simdFeatures {
		if cpuid.CPU.Supports(f.id) {
			d.Features = append(d.Features, f.name)
		}
	}
	return d
}

func (d Device) String() string {
	features := "none"
	if len(d.Features) > 0 {
		features = strings.Join(d.Features, ",")
	}
	return fmt.Sprintf("cpu %q (%d physical / %d logical cores, GOMAXPROCS=%d, simd=%s)",
		d.Brand, d.PhysicalCores, d.LogicalCores, d.GOMAXPROCS, features)
}
