// Package testutil provides common fixtures for testing.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	"github.com/iwvelando/solar-estimator/pkg/constants"
)

// RiyadhMonthly is a 21.6 kWp Riyadh yield in kWh, January first.
var RiyadhMonthly = [constants.MonthsPerYear]float64{2650, 2780, 3290, 3390, 3610, 3560, 3600, 3600, 3430, 3220, 2750, 2540}

// RiyadhAnnual is the sum of RiyadhMonthly.
const RiyadhAnnual = 38420.0

// Scale multiplies every month by factor.
func Scale(monthly [constants.MonthsPerYear]float64, factor float64) [constants.MonthsPerYear]float64 {
	var out [constants.MonthsPerYear]float64
	for i, v := range monthly {
		out[i] = v * factor
	}
	return out
}

// PVGISBody renders a yield provider reply for a fixed system producing
// monthly. Marshalling plain floats cannot fail, so errors panic.
func PVGISBody(monthly [constants.MonthsPerYear]float64) []byte {
	rows := make([]map[string]any, 0, constants.MonthsPerYear)
	var total float64
	for m, kwh := range monthly {
		rows = append(rows, map[string]any{"month": m + 1, "E_m": kwh, "E_d": kwh / 30})
		total += kwh
	}
	body := map[string]any{
		"inputs": map[string]any{
			"location": map[string]any{"latitude": 24.7136, "longitude": 46.6753, "elevation": 612},
		},
		"outputs": map[string]any{
			"monthly": map[string]any{"fixed": rows},
			"totals":  map[string]any{"fixed": map[string]any{"E_y": total}},
		},
	}
	data, err := json.Marshal(body)
	if err != nil {
		panic(err)
	}
	return data
}

// PVGISServer is a fake yield provider endpoint answering every request
// with the same status and body.
type PVGISServer struct {
	*httptest.Server
	calls  atomic.Int32
	status atomic.Int32
	body   atomic.Value
}

// NewPVGISServer starts a server replying 200 with body. Callers must Close it.
func NewPVGISServer(body []byte) *PVGISServer {
	s := &PVGISServer{}
	s.Reply(http.StatusOK, body)
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(int(s.status.Load()))
		_, _ = w.Write(s.body.Load().([]byte))
	}))
	return s
}

// Reply changes what later requests receive.
func (s *PVGISServer) Reply(status int, body []byte) {
	s.status.Store(int32(status))
	s.body.Store(body)
}

// Calls returns how many requests reached the server.
func (s *PVGISServer) Calls() int {
	return int(s.calls.Load())
}
