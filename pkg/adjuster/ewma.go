package adjuster

// ewma is an exponentially weighted moving average. The first sample
// initializes the average directly.
type ewma struct {
	initialized bool
	alpha       float64
	average     float64
}

func newEWMA(alpha float64) *ewma {
	return &ewma{alpha: alpha}
}

func (a *ewma) update(sample float64) {
	if !a.initialized {
		a.initialized = true
		a.average = sample
		return
	}
	a.average += a.alpha * (sample - a.average)
}

func (a *ewma) avg() float64 {
	return a.average
}

func (a *ewma) reset() {
	a.initialized = false
	a.average = 0
}
