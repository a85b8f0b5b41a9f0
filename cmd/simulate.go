package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Project-Caravana/telemetry-service/internal/service"
)

var (
	// Simulate command flags
	simTarget   string
	simVehicle  string
	simInterval time.Duration
	simCount    int
	simFaulty   bool
)

// simulateCmd represents the simulate command
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Submit synthetic telemetry readings",
	Long: `Generates synthetic OBD readings and submits them to a running
telemetry server. Useful for local development and for exercising the
alert rules and live broadcast without real hardware.`,
	Run: func(cmd *cobra.Command, args []string) {
		runSimulation()
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().StringVar(&simTarget, "target", "http://localhost:8093", "Base URL of the telemetry server")
	simulateCmd.Flags().StringVar(&simVehicle, "vehicle", "", "Vehicle UUID to submit readings for (required)")
	simulateCmd.Flags().DurationVar(&simInterval, "interval", 5*time.Second, "Delay between readings")
	simulateCmd.Flags().IntVar(&simCount, "count", 0, "Number of readings to send (0 = run until interrupted)")
	simulateCmd.Flags().BoolVar(&simFaulty, "faulty", false, "Occasionally emit out-of-threshold values to trigger alerts")
	simulateCmd.MarkFlagRequired("vehicle")
}

func f64(v float64) *float64 { return &v }

// randomPayload builds a plausible reading. With --faulty, roughly one in
// four readings crosses an alert threshold.
func randomPayload(odometer float64) *service.TelemetryPayload {
	speed := 40 + rand.Float64()*60
	temp := 80 + rand.Float64()*15
	fuel := 30 + rand.Float64()*60
	rpm := 1500 + rand.Float64()*2000

	if simFaulty && rand.Intn(4) == 0 {
		switch rand.Intn(3) {
		case 0:
			speed = 125 + rand.Float64()*30
		case 1:
			temp = 102 + rand.Float64()*12
		default:
			fuel = rand.Float64() * 14
		}
	}

	payload := &service.TelemetryPayload{
		Velocidade:          f64(speed),
		RPM:                 f64(rpm),
		Temperatura:         f64(temp),
		NivelCombustivel:    f64(fuel),
		PressaoOleo:         f64(2 + rand.Float64()*3),
		Voltagem:            f64(13.5 + rand.Float64()),
		ConsumoInstantaneo:  f64(5 + rand.Float64()*10),
		DistanciaPercorrida: f64(odometer),
		TipoLeitura:         "automatic",
		Fonte:               "simulador",
	}
	return payload
}

// runSimulation posts synthetic readings until the count is reached.
func runSimulation() {
	url := fmt.Sprintf("%s/api/v1/vehicles/%s/telemetry", simTarget, simVehicle)
	client := &http.Client{Timeout: 10 * time.Second}
	odometer := 10000 + rand.Float64()*50000

	log.WithField("url", url).Info("Starting telemetry simulation")

	for i := 0; simCount == 0 || i < simCount; i++ {
		odometer += rand.Float64() * 2
		body, err := json.Marshal(randomPayload(odometer))
		if err != nil {
			log.Fatalf("Failed to marshal payload: %v", err)
		}

		req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(body))
		if err != nil {
			log.Fatalf("Failed to build request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			log.WithError(err).Error("Failed to submit reading")
		} else {
			if resp.StatusCode != http.StatusOK {
				respBody, _ := io.ReadAll(resp.Body)
				log.WithField("status", resp.StatusCode).Warnf("Server rejected reading: %s", respBody)
			} else {
				log.WithField("reading", i+1).Info("Reading accepted")
			}
			resp.Body.Close()
		}

		time.Sleep(simInterval)
	}

	log.Info("Simulation complete")
}
