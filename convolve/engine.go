// Package convolve computes linear convolutions of real sequences through a
// zero-padded real FFT.
package convolve

import (
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/bcdannyboy/rbergomi/errdefs"
)

// Engine convolves sequences of a fixed length n. The FFT plan and every
// buffer are allocated once by NewEngine. An Engine must not be shared between
// goroutines.
type Engine struct {
	n    int
	size int
	fft  *fourier.FFT

	padX, padY []float64
	specX      []complex128
	specY      []complex128
	out        []float64
}

// NewEngine returns an engine for inputs of length n. The working length is the
// smallest power of two not below 2n-1, so the circular product never wraps.
func NewEngine(n int) (*Engine, error) {
	if n < 1 {
		return nil, fmt.Errorf("convolution length %d: %w", n, errdefs.ErrInvalidDiscretization)
	}
	size := 2
	for size < 2*n-1 {
		size <<= 1
	}
	return &Engine{
		n:     n,
		size:  size,
		fft:   fourier.NewFFT(size),
		padX:  make([]float64, size),
		padY:  make([]float64, size),
		specX: make([]complex128, size/2+1),
		specY: make([]complex128, size/2+1),
		out:   make([]float64, size),
	}, nil
}

// Len returns the input length n.
func (e *Engine) Len() int { return e.n }

// Size returns the working FFT length.
func (e *Engine) Size() int { return e.size }

// Spectrum returns the Fourier coefficients of x zero-padded to Size. The result
// has Size/2+1 entries and may be passed to ConvolveSpectrum repeatedly.
func (e *Engine) Spectrum(dst []complex128, x []float64) []complex128 {
	if len(x) != e.n {
		panic("convolve: input length mismatch")
	}
	if dst == nil {
		dst = make([]complex128, e.size/2+1)
	}
	copy(e.padX, x)
	clear(e.padX[e.n:])
	return e.fft.Coefficients(dst, e.padX)
}

// Convolve writes the linear convolution of x and y into dst. dst may be any
// length in [n, 2n-1]; the leading terms are returned. A nil dst receives all
// 2n-1 terms.
func (e *Engine) Convolve(dst, x, y []float64) []float64 {
	if len(y) != e.n {
		panic("convolve: input length mismatch")
	}
	e.Spectrum(e.specX, x)
	copy(e.padY, y)
	clear(e.padY[e.n:])
	e.fft.Coefficients(e.specY, e.padY)
	return e.multiply(dst, e.specX, e.specY)
}

// ConvolveSpectrum convolves x with a kernel whose spectrum was produced by
// Spectrum on this engine (or one of the same length).
func (e *Engine) ConvolveSpectrum(dst, x []float64, kernel []complex128) []float64 {
	if len(kernel) != e.size/2+1 {
		panic("convolve: spectrum length mismatch")
	}
	e.Spectrum(e.specX, x)
	return e.multiply(dst, e.specX, kernel)
}

// ConvolveSpectra multiplies two spectra from Spectrum and transforms back.
func (e *Engine) ConvolveSpectra(dst []float64, x, kernel []complex128) []float64 {
	if len(x) != e.size/2+1 || len(kernel) != e.size/2+1 {
		panic("convolve: spectrum length mismatch")
	}
	return e.multiply(dst, x, kernel)
}

func (e *Engine) multiply(dst []float64, x, y []complex128) []float64 {
	if dst == nil {
		dst = make([]float64, 2*e.n-1)
	}
	if len(dst) < e.n || len(dst) > 2*e.n-1 {
		panic("convolve: destination length out of range")
	}
	for i := range e.specY {
		e.specY[i] = x[i] * y[i]
	}
	e.fft.Sequence(e.out, e.specY)
	scale := 1 / float64(e.size)
	for i := range dst {
		dst[i] = e.out[i] * scale
	}
	return dst
}
