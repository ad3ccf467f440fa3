// Load generator for Kestrel.
//
// Usage:
//   go run cmd/kestrelgen/main.go -url http://localhost:8080 -count 10000
//
// This tool:
//   1. Generates synthetic transactions across channels and payment modes
//   2. Sends each transaction to Kestrel for scoring
//   3. Tallies verdicts by source (rule vs model)
//   4. Reports latency and throughput
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// GenTransaction is the request body for POST /detect.
type GenTransaction struct {
	ID          string  `json:"transaction_id"`
	Date        string  `json:"transaction_date"`
	Amount      float64 `json:"transaction_amount"`
	Channel     string  `json:"transaction_channel"`
	PaymentMode string  `json:"transaction_payment_mode"`
	GatewayBank string  `json:"payment_gateway_bank"`
	PayerEmail  string  `json:"payer_email"`
	PayerMobile string  `json:"payer_mobile"`
	PayerDevice string  `json:"payer_device"`
	PayeeID     string  `json:"payee_id"`
}

// DetectResponse is the Kestrel API response format.
type DetectResponse struct {
	TransactionID string  `json:"transaction_id"`
	IsFraud       bool    `json:"is_fraud"`
	FraudSource   string  `json:"fraud_source"`
	FraudReason   string  `json:"fraud_reason"`
	FraudScore    float64 `json:"fraud_score"`
	LatencyMs     int64   `json:"latency_ms"`
}

// Stats tracks generator results.
type Stats struct {
	TotalSent    int64
	TotalErrors  int64
	FraudRule    int64
	FraudModel   int64
	Clean        int64
	TotalLatency int64 // ms, client side
}

var (
	channels     = []string{"web", "mobile", "api", "pos"}
	paymentModes = []string{"card", "upi", "neft", "imps"}
	banks        = []string{"hdfc", "icici", "sbi", "axis"}
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	count := flag.Int("count", 1000, "Number of transactions to send")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	highRate := flag.Float64("high-rate", 0.05, "Fraction of transactions above the rule threshold")
	payers := flag.Int("payers", 200, "Distinct payer pool size (smaller = more velocity hits)")
	seed := flag.Int64("seed", 0, "Random seed (0 = time-based)")
	verbose := flag.Bool("verbose", false, "Print each verdict")
	flag.Parse()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	fmt.Println("╔═══════════════════════════════════════════════╗")
	fmt.Println("║        KESTREL LOAD GENERATOR                 ║")
	fmt.Println("╚═══════════════════════════════════════════════╝")
	fmt.Printf("\nKestrel URL: %s\n", *baseURL)
	fmt.Printf("Count:       %d\n", *count)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("High Rate:   %.2f\n", *highRate)
	fmt.Printf("Payer Pool:  %d\n", *payers)
	fmt.Printf("Seed:        %d\n", *seed)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kestrel is running:")
		fmt.Println("  go run cmd/kestrel/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Kestrel is healthy")

	// Generate the workload up front so workers only do I/O
	txs := make([]GenTransaction, *count)
	for i := range txs {
		txs[i] = generate(rng, *highRate, *payers)
	}

	fmt.Printf("\nSending %d transactions with %d workers...\n", *count, *workers)
	startTime := time.Now()
	stats := run(txs, *baseURL, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(stats, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func generate(rng *rand.Rand, highRate float64, payers int) GenTransaction {
	payer := rng.Intn(payers)

	// Log-ish amount spread with a deliberate slice above the
	// high-amount rule threshold
	var amount float64
	if rng.Float64() < highRate {
		amount = 10000 + rng.Float64()*90000
	} else {
		amount = 10 + rng.Float64()*4990
	}

	return GenTransaction{
		ID:          uuid.New().String(),
		Date:        time.Now().UTC().Format(time.RFC3339),
		Amount:      amount,
		Channel:     channels[rng.Intn(len(channels))],
		PaymentMode: paymentModes[rng.Intn(len(paymentModes))],
		GatewayBank: banks[rng.Intn(len(banks))],
		PayerEmail:  fmt.Sprintf("payer%d@example.com", payer),
		PayerMobile: fmt.Sprintf("+91%010d", 9000000000+payer),
		PayerDevice: fmt.Sprintf("device-%d", payer),
		PayeeID:     fmt.Sprintf("merchant-%d", rng.Intn(50)),
	}
}

func run(txs []GenTransaction, baseURL string, numWorkers int, verbose bool) *Stats {
	stats := &Stats{}

	work := make(chan GenTransaction, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for tx := range work {
				start := time.Now()
				result, err := score(client, baseURL, tx)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&stats.TotalLatency, elapsed)
				atomic.AddInt64(&stats.TotalSent, 1)

				if err != nil {
					atomic.AddInt64(&stats.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", tx.ID, err)
					}
					continue
				}

				switch {
				case result.IsFraud && result.FraudSource == "rule":
					atomic.AddInt64(&stats.FraudRule, 1)
				case result.IsFraud:
					atomic.AddInt64(&stats.FraudModel, 1)
				default:
					atomic.AddInt64(&stats.Clean, 1)
				}

				if verbose {
					verdict := "clean"
					if result.IsFraud {
						verdict = "FRAUD/" + result.FraudSource
					}
					fmt.Printf("%-36s | %-6s | $%10.2f | %-11s | score %.2f | %dms\n",
						tx.ID, tx.Channel, tx.Amount, verdict, result.FraudScore, result.LatencyMs)
				}
			}
		}()
	}

	for _, tx := range txs {
		work <- tx
	}
	close(work)

	wg.Wait()

	return stats
}

func score(client *http.Client, baseURL string, tx GenTransaction) (*DetectResponse, error) {
	body, err := json.Marshal(tx)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/detect", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result DetectResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(s *Stats, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════╗")
	fmt.Println("║               RESULTS                         ║")
	fmt.Println("╚═══════════════════════════════════════════════╝")

	fmt.Printf("\nVERDICTS\n")
	fmt.Printf("   Total Sent:      %d\n", s.TotalSent)
	fmt.Printf("   Fraud (rule):    %d\n", s.FraudRule)
	fmt.Printf("   Fraud (model):   %d\n", s.FraudModel)
	fmt.Printf("   Clean:           %d\n", s.Clean)
	fmt.Printf("   Errors:          %d\n", s.TotalErrors)

	scored := s.TotalSent - s.TotalErrors
	if scored > 0 {
		fraudRate := float64(s.FraudRule+s.FraudModel) / float64(scored) * 100
		fmt.Printf("   Fraud Rate:      %.2f%%\n", fraudRate)
	}

	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration:  %v\n", duration.Round(time.Millisecond))
	if s.TotalSent > 0 {
		avgMs := float64(s.TotalLatency) / float64(s.TotalSent)
		tps := float64(s.TotalSent) / duration.Seconds()
		fmt.Printf("   Avg Latency:     %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:      %.2f tx/sec\n", tps)
	}

	fmt.Println()
}
