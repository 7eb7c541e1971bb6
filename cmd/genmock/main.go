// Command genmock reads the geocode request CSV and generates the JSON
// fixtures used by the pipeline and integration test suites. Replies are
// produced by running every request through the real Google client against
// the canned API server, so the fixture matches actual pipeline output.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -csv data/mock/geocode_requests.csv \
//	  -requests-out data/mock/geocode_requests.json \
//	  -replies-out data/mock/geocode_replies.json
//
// With -brokers set, the requests are also published to the source topic so
// a locally running service can consume them.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/geocoder-service/internal/adapter/googlev3"
	"github.com/couchcryptid/geocoder-service/internal/adapter/googlev3/googlev3test"
	"github.com/couchcryptid/geocoder-service/internal/domain"
	"github.com/couchcryptid/geocoder-service/internal/observability"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
)

var processedAt = time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	csvPath := flag.String("csv", "data/mock/geocode_requests.csv", "request CSV file")
	requestsOut := flag.String("requests-out", "", "output path for the request JSON fixture")
	repliesOut := flag.String("replies-out", "", "output path for the reply JSON fixture")
	brokers := flag.String("brokers", "", "comma-separated Kafka brokers to publish requests to")
	topic := flag.String("topic", "geocode-requests", "source topic for -brokers")
	flag.Parse()

	if *requestsOut == "" && *repliesOut == "" && *brokers == "" {
		flag.Usage()
		return fmt.Errorf("nothing to do: set -requests-out, -replies-out or -brokers")
	}

	requests, err := readRequests(*csvPath)
	if err != nil {
		return fmt.Errorf("processing %s: %w", *csvPath, err)
	}
	log.Printf("requests: %d", len(requests))

	if *requestsOut != "" {
		if err := writeJSON(*requestsOut, requests); err != nil {
			return fmt.Errorf("writing request fixture: %w", err)
		}
		log.Printf("wrote request fixture: %s", *requestsOut)
	}

	if *repliesOut != "" {
		replies, err := resolveAll(requests)
		if err != nil {
			return err
		}
		if err := writeJSON(*repliesOut, replies); err != nil {
			return fmt.Errorf("writing reply fixture: %w", err)
		}
		log.Printf("wrote reply fixture: %s", *repliesOut)
		printStats(os.Stdout, replies)
	}

	if *brokers != "" {
		if err := publish(sharedcfg.ParseBrokers(*brokers), *topic, requests); err != nil {
			return fmt.Errorf("publishing requests: %w", err)
		}
		log.Printf("published %d requests to %s", len(requests), *topic)
	}
	return nil
}

func readRequests(path string) ([]domain.GeocodeRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	return parseRequests(f)
}

func parseRequests(r io.Reader) ([]domain.GeocodeRequest, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("no data rows")
	}

	colIdx := map[string]int{}
	for i, h := range rows[0] {
		colIdx[h] = i
	}

	requests := make([]domain.GeocodeRequest, 0, len(rows)-1)
	for n, row := range rows[1:] {
		req := domain.GeocodeRequest{
			ID:       get(row, colIdx, "id"),
			Kind:     domain.RequestKind(get(row, colIdx, "kind")),
			Address:  get(row, colIdx, "address"),
			LatLng:   get(row, colIdx, "latlng"),
			Bounds:   get(row, colIdx, "bounds"),
			Region:   get(row, colIdx, "region"),
			Language: get(row, colIdx, "language"),
		}
		if s := get(row, colIdx, "sensor"); s != "" {
			if req.Sensor, err = strconv.ParseBool(s); err != nil {
				return nil, fmt.Errorf("line %d: sensor: %w", n+2, err)
			}
		}
		if s := get(row, colIdx, "exactly_one"); s != "" {
			v, err := strconv.ParseBool(s)
			if err != nil {
				return nil, fmt.Errorf("line %d: exactly_one: %w", n+2, err)
			}
			req.ExactlyOne = &v
		}
		requests = append(requests, req)
	}
	return requests, nil
}

func get(row []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// resolveAll runs each request through the same parse and resolve steps as
// the pipeline transformer.
func resolveAll(requests []domain.GeocodeRequest) ([]domain.GeocodeReply, error) {
	// Fixed clock for reproducible processed_at timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(processedAt))
	defer domain.SetClock(nil)

	srv := googlev3test.NewServer()
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := googlev3.NewClient(srv.Options(), logger, observability.NewMetricsForTesting())
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	replies := make([]domain.GeocodeReply, 0, len(requests))
	for _, req := range requests {
		value, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("marshal request %s: %w", req.ID, err)
		}
		parsed, err := domain.ParseRequest(domain.RawEvent{Key: []byte(req.ID), Value: value})
		if err != nil {
			return nil, fmt.Errorf("request %s: %w", req.ID, err)
		}
		replies = append(replies, domain.Resolve(ctx, parsed, client, logger))
	}
	log.Printf("resolved %d requests with %d API calls", len(replies), srv.Requests())
	return replies, nil
}

func publish(brokers []string, topic string, requests []domain.GeocodeRequest) error {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	defer w.Close()

	msgs := make([]kafkago.Message, 0, len(requests))
	for _, req := range requests {
		value, err := json.Marshal(req)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafkago.Message{Key: []byte(req.ID), Value: value})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return w.WriteMessages(ctx, msgs...)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

type statusCount struct {
	status domain.Status
	count  int
}

func printStats(out io.Writer, replies []domain.GeocodeReply) {
	kinds := map[domain.RequestKind]int{}
	statuses := map[domain.Status]int{}
	var locations int
	for i := range replies {
		kinds[replies[i].Kind]++
		statuses[replies[i].Status]++
		locations += len(replies[i].Locations)
	}

	fmt.Fprintln(out, "\n=== Stats for updating test assertions ===")
	fmt.Fprintf(out, "Total: %d\n", len(replies))
	fmt.Fprintf(out, "By kind: forward=%d, reverse=%d\n", kinds[domain.RequestForward], kinds[domain.RequestReverse])
	fmt.Fprintf(out, "Locations: %d\n", locations)

	sc := make([]statusCount, 0, len(statuses))
	for s, c := range statuses {
		sc = append(sc, statusCount{s, c})
	}
	sort.Slice(sc, func(i, j int) bool {
		if sc[i].count != sc[j].count {
			return sc[i].count > sc[j].count
		}
		return sc[i].status < sc[j].status
	})
	fmt.Fprint(out, "By status:")
	for _, s := range sc {
		fmt.Fprintf(out, " %s=%d", s.status, s.count)
	}
	fmt.Fprintln(out)
}
