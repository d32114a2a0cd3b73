package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcdannyboy/rbergomi/errdefs"
)

func TestGridValidate(t *testing.T) {
	valid := func() *Grid {
		return &Grid{
			H:         []float64{0.07, 0.1},
			Eta:       []float64{2.2, 1.9},
			Rho:       []float64{-0.9, -0.7},
			Contracts: []Contract{{T: 0.5, K: 0.8}, {T: 0.5, K: 1}, {T: 1, K: 1}},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(g *Grid)
	}{
		{"length mismatch", func(g *Grid) { g.Rho = g.Rho[:1] }},
		{"no instances", func(g *Grid) { g.H, g.Eta, g.Rho = nil, nil, nil }},
		{"no contracts", func(g *Grid) { g.Contracts = nil }},
		{"H zero", func(g *Grid) { g.H[0] = 0 }},
		{"H half", func(g *Grid) { g.H[1] = 0.5 }},
		{"rho above one", func(g *Grid) { g.Rho[0] = 1.01 }},
		{"negative eta", func(g *Grid) { g.Eta[0] = -1 }},
		{"zero maturity", func(g *Grid) { g.Contracts[0].T = 0 }},
		{"negative strike", func(g *Grid) { g.Contracts[1].K = -1 }},
		{"unsorted", func(g *Grid) { g.Contracts[2].T = 0.25 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := valid()
			tt.mutate(g)
			assert.ErrorIs(t, g.Validate(), errdefs.ErrInvalidParameter)
		})
	}
}

func TestGridMaturities(t *testing.T) {
	g, err := NewGrid([]float64{0.1}, []float64{1}, []float64{0},
		[]Contract{{0.25, 0.9}, {0.25, 1.1}, {0.5, 1}, {1, 0.8}, {1, 1}})
	require.NoError(t, err)

	m := g.Maturities()
	require.Len(t, m, 3)
	assert.Equal(t, Maturity{T: 0.25, First: 0, Last: 2}, m[0])
	assert.Equal(t, Maturity{T: 0.5, First: 2, Last: 3}, m[1])
	assert.Equal(t, Maturity{T: 1, First: 3, Last: 5}, m[2])
	assert.Equal(t, []float64{0.8, 1}, g.Strikes(m[2]))
	assert.Equal(t, 5, g.Cells())
	assert.Equal(t, []Model{{H: 0.1, Eta: 1, Rho: 0}}, g.Instances())
}
