package model

import "math"

// group is a distinct feature row with the summed sample weight of its
// negative (w[0]) and positive (w[1]) occurrences.
type group struct {
	key string
	x   []float64
	w   [2]float64
}

// objective is the weighted logistic loss plus an L2 penalty on the
// coefficients. Parameters are laid out as [coef_0 … coef_{width-1}, intercept].
type objective struct {
	groups []group
	width  int
	l2     float64
}

func (o objective) loss(p []float64) float64 {
	var f float64
	for _, g := range o.groups {
		z := o.decision(p, g.x)
		// -log σ(z) = softplus(-z); -log(1-σ(z)) = softplus(z)
		f += g.w[1]*softplus(-z) + g.w[0]*softplus(z)
	}
	var reg float64
	for j := 0; j < o.width; j++ {
		reg += p[j] * p[j]
	}
	return f + 0.5*o.l2*reg
}

func (o objective) grad(grad, p []float64) {
	for j := range grad {
		grad[j] = 0
	}
	for _, g := range o.groups {
		s := sigmoid(o.decision(p, g.x))
		// d/dz of the group's loss: w1·(σ-1) + w0·σ
		d := g.w[1]*(s-1) + g.w[0]*s
		for j := 0; j < o.width; j++ {
			grad[j] += d * g.x[j]
		}
		grad[o.width] += d
	}
	for j := 0; j < o.width; j++ {
		grad[j] += o.l2 * p[j]
	}
}

func (o objective) decision(p, x []float64) float64 {
	z := p[o.width]
	for j := 0; j < o.width; j++ {
		z += p[j] * x[j]
	}
	return z
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// softplus computes log(1 + e^z) without overflow.
func softplus(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}
