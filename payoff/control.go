package payoff

import "gonum.org/v1/gonum/stat"

// ControlVariate holds one regression coefficient and baseline per cell.
type ControlVariate struct {
	Alpha []float64 `json:"alpha"`
	Q     []float64 `json:"q"`
}

// EstimateControlVariate regresses Romano-Touzi payoffs on direct payoffs.
// rt[c] and direct[c] are the pilot samples of cell c. Alpha is
// Cov(rt, direct)/Var(direct), zero when the direct payoff does not vary, and Q
// is the pilot mean of the direct payoff.
func EstimateControlVariate(rt, direct [][]float64) ControlVariate {
	if len(rt) != len(direct) {
		panic("payoff: cell count mismatch")
	}
	cv := ControlVariate{
		Alpha: make([]float64, len(rt)),
		Q:     make([]float64, len(rt)),
	}
	for c := range rt {
		if len(rt[c]) != len(direct[c]) {
			panic("payoff: sample count mismatch")
		}
		if len(direct[c]) == 0 {
			continue
		}
		cv.Q[c] = stat.Mean(direct[c], nil)
		if len(direct[c]) < 2 {
			continue
		}
		if v := stat.Variance(direct[c], nil); v > 0 {
			cv.Alpha[c] = stat.Covariance(rt[c], direct[c], nil) / v
		}
	}
	return cv
}

// Adjust writes rt - alpha*(direct - Q) for the cells starting at offset.
func (cv ControlVariate) Adjust(dst, rt, direct []float64, offset int) []float64 {
	if len(rt) != len(direct) {
		panic("payoff: cell count mismatch")
	}
	dst = sized(dst, len(rt))
	for j := range rt {
		dst[j] = rt[j] - cv.Alpha[offset+j]*(direct[j]-cv.Q[offset+j])
	}
	return dst
}
