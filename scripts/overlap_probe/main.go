// Command overlap_probe fires the same placement at a running API from many
// clients at once and checks that exactly one write wins. Every loser must
// be rejected with a placement error, never a 5xx or a second success.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

type options struct {
	Base     string
	Path     string
	Token    string
	Payload  []byte
	Clients  int
	Timeout  time.Duration
	Expected []string
}

type result struct {
	Status   int
	Code     string
	Duration time.Duration
	Err      error
}

type verdict struct {
	Created  int
	Rejected int
	Failed   int
	Codes    map[string]int
}

func (v verdict) ok() bool {
	return v.Created == 1 && v.Failed == 0
}

func main() {
	var (
		opts        options
		payloadPath string
		expected    string
	)
	flag.StringVar(&opts.Base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&opts.Path, "path", "/api/v1/schedules", "Collection to POST to")
	flag.StringVar(&opts.Token, "token", os.Getenv("PROBE_TOKEN"), "Bearer token with write access")
	flag.StringVar(&payloadPath, "payload", "", "JSON body file; the same body is sent by every client")
	flag.IntVar(&opts.Clients, "clients", 8, "Concurrent clients")
	flag.DurationVar(&opts.Timeout, "timeout", 10*time.Second, "Per request timeout")
	flag.StringVar(&expected, "expect", "SCHEDULE_CONFLICT,OUTSIDE_PERIOD,CONFLICT", "Error codes accepted from losing clients")
	flag.Parse()

	if payloadPath == "" {
		log.Fatal("-payload is required")
	}
	body, err := os.ReadFile(payloadPath)
	if err != nil {
		log.Fatalf("read payload: %v", err)
	}
	if !json.Valid(body) {
		log.Fatalf("payload %s is not valid JSON", payloadPath)
	}
	opts.Payload = body
	opts.Expected = strings.Split(expected, ",")

	results := probe(context.Background(), &http.Client{Timeout: opts.Timeout}, opts)
	v := evaluate(results, opts.Expected)
	report(os.Stdout, results, v)
	if !v.ok() {
		os.Exit(1)
	}
}

// probe releases all clients together so their writes contend for the
// same resource lock.
func probe(ctx context.Context, client *http.Client, opts options) []result {
	results := make([]result, opts.Clients)
	start := make(chan struct{})
	g, ctx := errgroup.WithContext(ctx)
	for i := range results {
		i := i
		g.Go(func() error {
			<-start
			results[i] = post(ctx, client, opts)
			return nil
		})
	}
	close(start)
	_ = g.Wait()
	return results
}

func post(ctx context.Context, client *http.Client, opts options) result {
	url := strings.TrimRight(opts.Base, "/") + "/" + strings.TrimLeft(opts.Path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(opts.Payload))
	if err != nil {
		return result{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.Token)
	}

	began := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return result{Err: err, Duration: time.Since(began)}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	res := result{Status: resp.StatusCode, Duration: time.Since(began), Err: err}

	var envelope struct {
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error != nil {
		res.Code = envelope.Error.Code
	}
	return res
}

func evaluate(results []result, expected []string) verdict {
	accepted := make(map[string]bool, len(expected))
	for _, code := range expected {
		accepted[strings.TrimSpace(code)] = true
	}
	v := verdict{Codes: map[string]int{}}
	for _, r := range results {
		switch {
		case r.Err != nil:
			v.Failed++
		case r.Status == http.StatusCreated:
			v.Created++
		case accepted[r.Code]:
			v.Rejected++
			v.Codes[r.Code]++
		default:
			v.Failed++
			v.Codes[fmt.Sprintf("%d %s", r.Status, r.Code)]++
		}
	}
	return v
}

func report(w io.Writer, results []result, v verdict) {
	fmt.Fprintln(w, "Overlap Probe Report")
	fmt.Fprintln(w, "====================")
	for i, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "client %2d  error  %v\n", i, r.Err)
			continue
		}
		fmt.Fprintf(w, "client %2d  %d %-18s %s\n", i, r.Status, r.Code, r.Duration.Round(time.Millisecond))
	}
	fmt.Fprintf(w, "created=%d rejected=%d failed=%d codes=%v\n", v.Created, v.Rejected, v.Failed, v.Codes)
	if v.ok() {
		fmt.Fprintln(w, "PASS: exactly one placement won")
	} else {
		fmt.Fprintln(w, "FAIL: expected exactly one 201 and only placement rejections")
	}
}
