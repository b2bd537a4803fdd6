package prepare

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"
	"gonum.org/v1/gonum/stat"

	"LoadCast/internal/domain/models"
	"LoadCast/internal/services/features"
)

// QualityReport summarises raw observations before preparation.
func QualityReport(entityID string, obs []models.Observation) models.DataQualityReport {
	rep := models.DataQualityReport{EntityID: entityID, TotalRecords: len(obs)}
	if len(obs) == 0 {
		return rep
	}

	present := make([]float64, 0, len(obs))
	seen := make(map[int64]struct{}, len(obs))
	rep.Start, rep.End = Day(obs[0].Date), Day(obs[0].Date)
	for _, o := range obs {
		d := Day(o.Date)
		if _, dup := seen[d.Unix()]; dup {
			rep.DuplicateDates++
		}
		seen[d.Unix()] = struct{}{}
		if d.Before(rep.Start) {
			rep.Start = d
		}
		if d.After(rep.End) {
			rep.End = d
		}
		switch {
		case math.IsNaN(o.Value):
			rep.MissingValues++
			continue
		case o.Value == 0:
			rep.ZeroValues++
		case o.Value < 0:
			rep.NegativeValues++
		}
		present = append(present, o.Value)
	}
	rep.MissingRatio = float64(rep.MissingValues) / float64(len(obs))
	rep.RangeDays = int(rep.End.Sub(rep.Start)/day) + 1

	if len(present) > 0 {
		sort.Float64s(present)
		mean, std := stat.MeanStdDev(present, nil)
		if len(present) < 2 {
			std = 0
		}
		rep.Stats = models.ValueStats{
			Mean:   mean,
			Std:    std,
			Min:    present[0],
			Max:    present[len(present)-1],
			Median: features.Quantile(0.5, present),
		}
		q1 := features.Quantile(0.25, present)
		q3 := features.Quantile(0.75, present)
		iqr := q3 - q1
		for _, v := range present {
			if v < q1-1.5*iqr || v > q3+1.5*iqr {
				rep.Outliers++
			}
		}
	}
	rep.Fingerprint = hashObservations(entityID, obs)
	return rep
}

// Fingerprint returns a stable content hash of a prepared series.
func Fingerprint(series models.TimeSeries) string {
	h := xxhash.New()
	_, _ = h.WriteString(series.EntityID)
	var buf [8]byte
	for i, d := range series.Dates {
		binary.LittleEndian.PutUint64(buf[:], uint64(d.Unix()))
		_, _ = h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(series.Values[i]))
		_, _ = h.Write(buf[:])
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

func hashObservations(entityID string, obs []models.Observation) string {
	h := xxhash.New()
	_, _ = h.WriteString(entityID)
	var buf [8]byte
	for _, o := range obs {
		binary.LittleEndian.PutUint64(buf[:], uint64(o.Date.Unix()))
		_, _ = h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(o.Value))
		_, _ = h.Write(buf[:])
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
