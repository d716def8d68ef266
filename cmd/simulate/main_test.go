package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/stat"
)

func TestBatchRates(t *testing.T) {
	outcomes := []bool{true, false, true, true, false, false, false}
	rates := BatchRates(outcomes, 3)
	assert.Equal(t, []float64{0.5, 1, 0}, rates)

	mean, std := stat.MeanStdDev(rates, nil)
	assert.InDelta(t, 0.5, mean, 1e-12)
	assert.InDelta(t, 0.5, std, 1e-12)
}
