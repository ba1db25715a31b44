// Command tradeload fires concurrent buy/sell traffic at a papertrade server
// while listening on the delta stream, then checks the ledger is still sane.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/papertrade/internal/client"
)

func main() {
	var (
		baseURL   string
		workers   int
		listeners int
		duration  time.Duration
		symbols   string
		price     float64
	)

	flag.StringVar(&baseURL, "url", "http://localhost:8080", "server base URL")
	flag.IntVar(&workers, "workers", 16, "concurrent traders")
	flag.IntVar(&listeners, "listeners", 4, "concurrent /ledger/stream subscribers")
	flag.DurationVar(&duration, "dur", 30*time.Second, "test duration")
	flag.StringVar(&symbols, "symbols", "AAPL,MSFT,NVDA", "comma separated symbols to trade")
	flag.Float64Var(&price, "price", 10, "price per share")
	flag.Parse()

	if workers <= 0 {
		log.Fatalf("invalid workers: %d", workers)
	}
	syms := strings.Split(symbols, ",")

	transport := &http.Transport{
		MaxConnsPerHost:     workers + listeners + 10,
		MaxIdleConnsPerHost: workers + 10,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	cl, err := client.New(baseURL, &http.Client{Transport: transport, Timeout: 10 * time.Second})
	if err != nil {
		log.Fatalf("client: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	runCtx, stop := context.WithTimeout(ctx, duration)
	defer stop()

	var (
		accepted atomic.Int64
		rejected atomic.Int64
		failed   atomic.Int64
		events   atomic.Int64
	)

	streamClient := &http.Client{Transport: transport}
	var wg sync.WaitGroup
	for i := 0; i < listeners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := listen(runCtx, streamClient, baseURL+"/ledger/stream", &events); err != nil && runCtx.Err() == nil {
				log.Printf("stream: %v", err)
			}
		}()
	}

	start := time.Now()
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for n := 0; runCtx.Err() == nil; n++ {
				t := client.Trade{
					Symbol:       syms[(id+n)%len(syms)],
					Quantity:     int64(1 + n%3),
					CurrentPrice: price,
				}
				t.TotalCost = price * float64(t.Quantity)

				var err error
				if n%2 == 0 {
					_, err = cl.Buy(runCtx, t)
				} else {
					_, err = cl.Sell(runCtx, t)
				}

				var apiErr *client.APIError
				switch {
				case err == nil:
					accepted.Add(1)
				case errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError:
					rejected.Add(1)
				case runCtx.Err() != nil:
					return
				default:
					failed.Add(1)
				}
			}
		}(i)
	}

	ticker := time.NewTicker(5 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				log.Printf("status: accepted=%d rejected=%d failed=%d events=%d elapsed=%s",
					accepted.Load(), rejected.Load(), failed.Load(), events.Load(),
					time.Since(start).Truncate(time.Second))
			}
		}
	}()

	wg.Wait()
	elapsed := time.Since(start)

	checkCtx, checkCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer checkCancel()
	problems, err := verify(checkCtx, cl)
	if err != nil {
		log.Fatalf("verify: %v", err)
	}

	fmt.Printf("done: accepted=%d rejected=%d failed=%d events=%d elapsed=%s trades/s=%.2f\n",
		accepted.Load(), rejected.Load(), failed.Load(), events.Load(),
		elapsed.Truncate(time.Millisecond), float64(accepted.Load())/math.Max(elapsed.Seconds(), 0.001))

	for _, p := range problems {
		fmt.Println("violation:", p)
	}
	if len(problems) > 0 || failed.Load() > 0 {
		os.Exit(1)
	}
}

// listen counts delta events until ctx ends. Heartbeat comments are ignored.
func listen(ctx context.Context, hc *http.Client, url string, events *atomic.Int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("unexpected status %d", resp.StatusCode)
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		if strings.HasPrefix(line, "event:") {
			events.Add(1)
		}
	}
}

// verify reads the final ledger and reports every broken invariant.
func verify(ctx context.Context, cl *client.Client) ([]string, error) {
	w, err := cl.Wallet(ctx)
	if err != nil {
		return nil, err
	}
	holdings, err := cl.Holdings(ctx)
	if err != nil {
		return nil, err
	}
	sum, err := cl.NetWorth(ctx)
	if err != nil {
		return nil, err
	}

	var problems []string
	if w.Balance < 0 {
		problems = append(problems, fmt.Sprintf("negative balance %.2f", w.Balance))
	}

	seen := make(map[string]bool, len(holdings))
	var stocks float64
	for _, h := range holdings {
		if seen[h.Symbol] {
			problems = append(problems, fmt.Sprintf("duplicate holding %s", h.Symbol))
		}
		seen[h.Symbol] = true
		if h.Quantity < 1 {
			problems = append(problems, fmt.Sprintf("%s has quantity %d", h.Symbol, h.Quantity))
			continue
		}
		if avg := h.TotalCost / float64(h.Quantity); math.Abs(avg-h.AverageCostPerShare) > 0.01 {
			problems = append(problems, fmt.Sprintf("%s average %.4f, want %.4f", h.Symbol, h.AverageCostPerShare, avg))
		}
		stocks += h.MarketValue
	}
	if math.Abs(sum.NetWorth-(sum.Balance+stocks)) > 0.01 {
		problems = append(problems, fmt.Sprintf("net worth %.2f != balance %.2f + stocks %.2f", sum.NetWorth, sum.Balance, stocks))
	}
	return problems, nil
}
