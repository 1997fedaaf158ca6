package weather

// MergeObservations folds per-category nowcast observations into one
// WeatherInfo per bucket and grid point. Output follows the order in which
// each bucket first appears; a later value for the same category wins.
func MergeObservations(obs []Observation) []WeatherInfo {
	type key struct {
		bucket string
		nx, ny int
	}

	index := make(map[key]int)
	out := make([]WeatherInfo, 0)

	for _, o := range obs {
		k := key{bucket: o.Bucket, nx: o.NX, ny: o.NY}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, WeatherInfo{
				Bucket: o.Bucket,
				NX:     o.NX,
				NY:     o.NY,
				Values: make(map[string]float64),
			})
		}
		out[i].Values[o.Category] = o.Value
	}

	return out
}
