package models

// Increments are standard-normal driving increments on the unit-step grid.
type Increments []float64

// FractionalPath holds the tilted Volterra process, either on the unit-step grid
// or scaled to a maturity window.
type FractionalPath []float64

// VariancePath holds the instantaneous variance at the left end of every step.
type VariancePath []float64
