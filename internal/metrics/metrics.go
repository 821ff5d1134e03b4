package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DanielDobromylskyj/2D-Engine-Simulator/internal/telemetry"
)

var (
	rpmGauge      = prometheus.NewGauge(prometheus.GaugeOpts{Name: "engine_rpm"})
	throttleGauge = prometheus.NewGauge(prometheus.GaugeOpts{Name: "engine_throttle"})
	starterGauge  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "engine_starter_active"})
	runningGauge  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "engine_running"})

	cylinderTempGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_cylinder_temperature_kelvin",
			Help: "Current charge temperature of each cylinder (in Kelvin)",
		},
		[]string{"cylinder"},
	)
	cylinderPressureGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_cylinder_pressure_pascal",
			Help: "Current chamber pressure of each cylinder (in Pascal)",
		},
		[]string{"cylinder"},
	)
	cylinderFuelGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_cylinder_fuel_kg",
			Help: "Unburned fuel mass in each cylinder (in kg)",
		},
		[]string{"cylinder"},
	)
	cylinderTempClamps = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_cylinder_temperature_clamps_total",
			Help: "Times the temperature of each cylinder hit a clamp bound",
		},
		[]string{"cylinder"},
	)
	cylinderMassClamps = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_cylinder_mass_clamps_total",
			Help: "Times a species mass of each cylinder was clamped at zero",
		},
		[]string{"cylinder"},
	)
)

var registry = prometheus.NewRegistry()

func init() {
	registry.MustRegister(
		rpmGauge, throttleGauge, starterGauge, runningGauge,
		cylinderTempGauge, cylinderPressureGauge, cylinderFuelGauge,
		cylinderTempClamps, cylinderMassClamps,
	)
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Observe publishes a telemetry frame to the gauges.
func Observe(f *telemetry.DataFrame) {
	if f == nil {
		return
	}
	rpmGauge.Set(f.RPM)
	throttleGauge.Set(f.Throttle)
	starterGauge.Set(boolVal(f.Starter))
	runningGauge.Set(boolVal(f.Running))

	for i, cyl := range f.Cylinders {
		id := fmt.Sprintf("%d", i)
		cylinderTempGauge.WithLabelValues(id).Set(cyl.Temperature)
		cylinderPressureGauge.WithLabelValues(id).Set(cyl.Pressure)
		cylinderFuelGauge.WithLabelValues(id).Set(cyl.Fuel)
		cylinderTempClamps.WithLabelValues(id).Set(float64(cyl.TempClamps))
		cylinderMassClamps.WithLabelValues(id).Set(float64(cyl.MassClamps))
	}
}

func boolVal(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
