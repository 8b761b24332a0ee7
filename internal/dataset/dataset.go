package dataset

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Instance is one labelled row
type Instance struct {
	Features []float64
	Label    float64
}

// DataSet is an ordered collection of rows with the same feature count
type DataSet struct {
	Instances []Instance
}

// Len returns the number of rows
func (d *DataSet) Len() int {
	return len(d.Instances)
}

// FeatureCount returns the number of feature columns, 0 for an empty set
func (d *DataSet) FeatureCount() int {
	if len(d.Instances) == 0 {
		return 0
	}
	return len(d.Instances[0].Features)
}

// Column returns feature column i
func (d *DataSet) Column(i int) []float64 {
	col := make([]float64, len(d.Instances))
	for j, in := range d.Instances {
		col[j] = in.Features[i]
	}
	return col
}

// Labels returns the label column
func (d *DataSet) Labels() []float64 {
	labels := make([]float64, len(d.Instances))
	for j, in := range d.Instances {
		labels[j] = in.Label
	}
	return labels
}

// AttributeStats summarises one feature column
type AttributeStats struct {
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

// Description summarises every feature column of a data set
type Description struct {
	Attributes []AttributeStats
	Label      AttributeStats
}

// Describe computes per-column statistics
func Describe(d *DataSet) Description {
	desc := Description{Attributes: make([]AttributeStats, d.FeatureCount())}
	for i := range desc.Attributes {
		desc.Attributes[i] = describeColumn(d.Column(i))
	}
	if d.Len() > 0 {
		desc.Label = describeColumn(d.Labels())
	}
	return desc
}

func describeColumn(col []float64) AttributeStats {
	s := AttributeStats{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, v := range col {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Mean, s.StdDev = stat.MeanStdDev(col, nil)
	if len(col) < 2 {
		s.StdDev = 0
	}
	return s
}

// Normalize rescales features to [0, 1] using the min/max of desc. Constant
// columns become 0. desc is usually computed on the training set and applied
// to both training and testing sets.
func Normalize(d *DataSet, desc Description) {
	for j := range d.Instances {
		f := d.Instances[j].Features
		for i := range f {
			if i >= len(desc.Attributes) {
				break
			}
			a := desc.Attributes[i]
			span := a.Max - a.Min
			if span == 0 {
				f[i] = 0
				continue
			}
			f[i] = (f[i] - a.Min) / span
		}
	}
}
