package segmentation

import (
	"errors"
	"math"
	"math/rand"
	"runtime"
	"slices"

	"gocv.io/x/gocv"
)

// KMeans fits k clusters with OpenCV's k-means++ seeding. InitRuns attempts
// are made and the most compact one wins; Seed fixes OpenCV's generator so
// fits are reproducible.
type KMeans struct {
	K        int
	MaxIter  int
	InitRuns int
	Tol      float64
	Seed     int64
}

type Model struct {
	// Centers are sorted lexicographically, so label 0 is the lowest center.
	Centers [][]float64
	Inertia float64
}

func (km KMeans) Fit(points [][]float64) (*Model, error) {
	if len(points) == 0 {
		return nil, errors.New("no points to cluster")
	}
	if km.K < 1 {
		return nil, errors.New("cluster count must be positive")
	}
	k := min(km.K, len(points))
	dim := len(points[0])

	data := gocv.NewMatWithSize(len(points), dim, gocv.MatTypeCV32F)
	defer data.Close()
	for i, p := range points {
		for j, v := range p {
			data.SetFloatAt(i, j, float32(v))
		}
	}

	labels := gocv.NewMat()
	defer labels.Close()
	centers := gocv.NewMat()
	defer centers.Close()

	// OpenCV's default generator is per OS thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	gocv.SetRNGSeed(int(km.Seed))

	criteria := gocv.NewTermCriteria(gocv.Count+gocv.EPS, max(1, km.MaxIter), km.Tol)
	compactness := gocv.KMeans(data, k, &labels, criteria, max(1, km.InitRuns), gocv.KMeansPPCenters, &centers)

	model := &Model{Inertia: compactness, Centers: make([][]float64, centers.Rows())}
	for c := range model.Centers {
		center := make([]float64, dim)
		for j := range center {
			center[j] = float64(centers.GetFloatAt(c, j))
		}
		model.Centers[c] = center
	}
	if len(model.Centers) != k {
		return nil, errors.New("clustering returned an unexpected number of centers")
	}
	model.Centers = canonicalOrder(model.Centers)
	return model, nil
}

// Predict returns the index of the nearest center; ties go to the lower index.
func (m *Model) Predict(point []float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, center := range m.Centers {
		var d float64
		for i := range point {
			diff := point[i] - center[i]
			d += diff * diff
		}
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func canonicalOrder(centers [][]float64) [][]float64 {
	sorted := slices.Clone(centers)
	slices.SortStableFunc(sorted, func(a, b []float64) int {
		return slices.Compare(a, b)
	})
	return sorted
}

// sampleIndices draws m distinct indices from [0, n) with Floyd's
// algorithm and returns them sorted. m >= n yields every index.
func sampleIndices(n, m int, rng *rand.Rand) []int {
	if m >= n {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all
	}
	chosen := make(map[int]struct{}, m)
	for j := n - m; j < n; j++ {
		t := rng.Intn(j + 1)
		if _, ok := chosen[t]; ok {
			chosen[j] = struct{}{}
		} else {
			chosen[t] = struct{}{}
		}
	}
	indices := make([]int, 0, m)
	for idx := range chosen {
		indices = append(indices, idx)
	}
	slices.Sort(indices)
	return indices
}
