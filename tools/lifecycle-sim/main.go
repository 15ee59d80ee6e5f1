package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Drives a full booking lifecycle against a running booking-service:
// master -> service -> client -> booking -> outcome. Useful for smoke
// testing the deposit flow end to end with the noop hold client.
func main() {
	var (
		baseURL  = flag.String("base-url", getenv("BASE_URL", "http://localhost:8081"), "booking-service base url")
		outcome  = flag.String("outcome", getenv("OUTCOME", "no_show"), "final transition: complete | no_show | cancel")
		price    = flag.Float64("price", 80, "service price in EUR")
		duration = flag.Int("duration", 60, "service duration in minutes")
		lead     = flag.Duration("lead", 48*time.Hour, "how far in the future to book")
		withPay  = flag.Bool("with-payment", false, "authorize a hold at creation (requires stripe config on the service)")
	)
	flag.Parse()

	base := strings.TrimRight(*baseURL, "/")
	runID := uuid.NewString()[:8]

	master := post(base+"/api/v1/masters", map[string]any{
		"name":  "Sim Master " + runID,
		"email": "master-" + runID + "@sim.local",
	})
	service := post(base+"/api/v1/services", map[string]any{
		"master_id":        master["id"],
		"name":             "Sim Service",
		"duration_minutes": *duration,
		"price":            *price,
	})
	client := post(base+"/api/v1/clients", map[string]any{
		"name":  "Sim Client " + runID,
		"email": "client-" + runID + "@sim.local",
	})

	booking := post(base+"/api/v1/bookings", map[string]any{
		"master_id":    master["id"],
		"client_id":    client["id"],
		"service_id":   service["id"],
		"booking_date": time.Now().UTC().Add(*lead).Format(time.RFC3339),
		"with_payment": *withPay,
	})
	fmt.Printf("booking=%v hold=%v status=%v\n", booking["id"], booking["hold_amount"], booking["status"])

	var path string
	switch *outcome {
	case "complete":
		path = "/complete"
	case "no_show":
		path = "/no-show"
	case "cancel":
		path = "/cancel"
	default:
		fatal("unsupported outcome: " + *outcome)
	}

	result := post(base+"/api/v1/bookings/"+str(booking["id"])+path, map[string]any{})
	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))

	ledger := get(base + "/api/v1/bookings/" + str(booking["id"]) + "/ledger")
	fmt.Printf("ledger entries: %s\n", ledger)
}

func post(url string, body map[string]any) map[string]any {
	payload, err := json.Marshal(body)
	if err != nil {
		fatal(err.Error())
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		fatal(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatal(err.Error())
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		fatal(fmt.Sprintf("POST %s: status=%d body=%s", url, resp.StatusCode, raw))
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		fatal(fmt.Sprintf("POST %s: bad response: %s", url, raw))
	}
	return out
}

func get(url string) string {
	resp, err := http.Get(url)
	if err != nil {
		fatal(err.Error())
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		fatal(fmt.Sprintf("GET %s: status=%d body=%s", url, resp.StatusCode, raw))
	}
	return string(raw)
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
