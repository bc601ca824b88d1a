package metrics

import "github.com/prometheus/client_golang/prometheus"

// PalletMetrics counts pallet lifecycle transitions.
type PalletMetrics struct {
	bookedBottles prometheus.Counter
	completed     prometheus.Counter
	overbooked    prometheus.Counter
}

func NewPalletMetrics(reg prometheus.Registerer) *PalletMetrics {
	if reg == nil {
		return &PalletMetrics{}
	}
	booked := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pallet_booked_bottles_total",
		Help:      "Bottles reserved on pallets.",
	})
	completed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pallet_completed_total",
		Help:      "Pallets that reached capacity.",
	})
	overbooked := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pallet_admin_overbook_total",
		Help:      "Bookings accepted beyond capacity by an administrator.",
	})
	reg.MustRegister(booked, completed, overbooked)
	return &PalletMetrics{bookedBottles: booked, completed: completed, overbooked: overbooked}
}

func (p *PalletMetrics) AddBooked(bottles int) {
	if p == nil || p.bookedBottles == nil || bottles <= 0 {
		return
	}
	p.bookedBottles.Add(float64(bottles))
}

func (p *PalletMetrics) IncCompleted() {
	if p == nil || p.completed == nil {
		return
	}
	p.completed.Inc()
}

func (p *PalletMetrics) IncOverbooked() {
	if p == nil || p.overbooked == nil {
		return
	}
	p.overbooked.Inc()
}
