// Command validate performs end-to-end integrity checks across the geocode
// mock data: the request CSV, the request JSON fixture, and a reply dump
// (the reply fixture or messages captured from the sink topic). It verifies
// row counts, request validity, reply coverage, and reply field constraints.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -csv data/mock/geocode_requests.csv \
//	  -requests-json data/mock/geocode_requests.json \
//	  -replies-json data/mock/geocode_replies.json
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/geocoder-service/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	csvPath := flag.String("csv", "data/mock/geocode_requests.csv", "request CSV file")
	requestsJSON := flag.String("requests-json", "data/mock/geocode_requests.json", "request JSON fixture")
	repliesJSON := flag.String("replies-json", "data/mock/geocode_replies.json", "reply JSON fixture or sink topic dump")
	flag.Parse()

	os.Exit(run(*csvPath, *requestsJSON, *repliesJSON, os.Stdout))
}

func run(csvPath, requestsPath, repliesPath string, out io.Writer) int {
	fmt.Fprintln(out, "=== Geocode Data Integrity Validation ===")
	fmt.Fprintln(out)

	rows, err := loadCSV(csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load request CSV: %v\n", err)
		return 1
	}

	requests, err := loadJSON[domain.GeocodeRequest](requestsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load request JSON: %v\n", err)
		return 1
	}

	replies, err := loadJSON[domain.GeocodeReply](repliesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load reply JSON: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateFixtureParity(rows, requests),
		validateRequests(requests),
		validateCoverage(requests, replies),
		validateReplies(replies),
	}

	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Records: %d CSV, %d request JSON, %d reply JSON\n", len(rows), len(requests), len(replies))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// ── Data loading ──

// csvRow is a parsed CSV row with field values keyed by header name.
type csvRow struct {
	lineNum int
	fields  map[string]string
}

func loadCSV(path string) ([]csvRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(all) < 2 {
		return nil, fmt.Errorf("no data rows in %s", path)
	}

	header := all[0]
	rows := make([]csvRow, 0, len(all)-1)
	for i, row := range all[1:] {
		fields := make(map[string]string, len(header))
		for j, h := range header {
			if j < len(row) {
				fields[h] = strings.TrimSpace(row[j])
			}
		}
		rows = append(rows, csvRow{lineNum: i + 2, fields: fields})
	}
	return rows, nil
}

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ── Phase 1: Fixture Parity ──
// Validates that the request JSON fixture mirrors the CSV row for row.

func validateFixtureParity(rows []csvRow, requests []domain.GeocodeRequest) *phase {
	p := &phase{name: "Phase 1: Fixture Parity (JSON vs CSV)"}

	if len(rows) != len(requests) {
		p.errorf("count: CSV has %d rows, JSON has %d requests", len(rows), len(requests))
		return p
	}

	for i, row := range rows {
		req := requests[i]
		check := func(col, got string) {
			if want := row.fields[col]; want != got {
				p.errorf("line %d: %s: CSV=%q, JSON=%q", row.lineNum, col, want, got)
			}
		}
		check("id", req.ID)
		check("kind", string(req.Kind))
		check("address", req.Address)
		check("latlng", req.LatLng)
		check("bounds", req.Bounds)
		check("region", req.Region)
		check("language", req.Language)

		if want := row.fields["sensor"] == "true"; want != req.Sensor {
			p.errorf("line %d: sensor: CSV=%q, JSON=%t", row.lineNum, row.fields["sensor"], req.Sensor)
		}
		exactlyOne := ""
		if req.ExactlyOne != nil {
			exactlyOne = strconv.FormatBool(*req.ExactlyOne)
		}
		check("exactly_one", exactlyOne)
	}
	return p
}

// ── Phase 2: Request Validity ──
// Validates that every request would be accepted by the pipeline.

func validateRequests(requests []domain.GeocodeRequest) *phase {
	p := &phase{name: "Phase 2: Request Validity (parse)"}

	seen := map[string]bool{}
	for i, req := range requests {
		if req.ID == "" {
			p.errorf("request %d: missing id", i)
		} else if seen[req.ID] {
			p.errorf("request %d: duplicate id %q", i, req.ID)
		}
		seen[req.ID] = true

		value, err := json.Marshal(req)
		if err != nil {
			p.errorf("request %s: marshal: %v", req.ID, err)
			continue
		}
		parsed, err := domain.ParseRequest(domain.RawEvent{Key: []byte(req.ID), Value: value})
		if err != nil {
			p.errorf("request %s: %v", req.ID, err)
			continue
		}
		if parsed.Kind == domain.RequestReverse {
			if _, err := domain.ParseCoordinate(parsed.LatLng); err != nil {
				p.errorf("request %s: latlng: %v", req.ID, err)
			}
		}
	}
	return p
}

// ── Phase 3: Reply Coverage ──
// Validates that every request was answered once and matches its reply.

func validateCoverage(requests []domain.GeocodeRequest, replies []domain.GeocodeReply) *phase {
	p := &phase{name: "Phase 3: Reply Coverage (request vs reply)"}

	byID := map[string]domain.GeocodeReply{}
	for i, reply := range replies {
		if _, dup := byID[reply.ID]; dup {
			p.errorf("reply %d: duplicate id %q", i, reply.ID)
			continue
		}
		byID[reply.ID] = reply
	}

	requested := map[string]bool{}
	for _, req := range requests {
		requested[req.ID] = true
		reply, ok := byID[req.ID]
		if !ok {
			p.errorf("request %s: no reply", req.ID)
			continue
		}
		if req.Kind != "" && reply.Kind != req.Kind {
			p.errorf("request %s: kind: expected %q, got %q", req.ID, req.Kind, reply.Kind)
		}
		if exactlyOne(req) && len(reply.Locations) > 1 {
			p.errorf("request %s: exactly one result requested, got %d", req.ID, len(reply.Locations))
		}
	}

	for id := range byID {
		if !requested[id] {
			p.errorf("reply %s: no matching request", id)
		}
	}
	return p
}

// exactlyOne applies the per-kind default the pipeline uses.
func exactlyOne(req domain.GeocodeRequest) bool {
	if req.ExactlyOne != nil {
		return *req.ExactlyOne
	}
	return req.Kind != domain.RequestReverse
}

// ── Phase 4: Reply Schema ──
// Validates reply field values against the sink topic contract.

var (
	replyStatuses = map[domain.Status]bool{
		domain.StatusOK:             true,
		domain.StatusZeroResults:    true,
		domain.StatusOverQueryLimit: true,
		domain.StatusRequestDenied:  true,
		domain.StatusInvalidRequest: true,
		domain.StatusUnknownError:   true,
		domain.StatusFailed:         true,
	}
	errorKinds = map[string]bool{
		domain.KindConfiguration.String():  true,
		domain.KindQuery.String():          true,
		domain.KindTooManyQueries.String(): true,
		domain.KindGenericResult.String():  true,
		domain.KindParse.String():          true,
		domain.KindUnknown.String():        true,
	}
)

func validateReplies(replies []domain.GeocodeReply) *phase {
	p := &phase{name: "Phase 4: Reply Schema (sink contract)"}
	for i := range replies {
		checkReply(p, i, &replies[i])
	}
	return p
}

func checkReply(p *phase, i int, r *domain.GeocodeReply) {
	pf := func(format string, args ...any) {
		p.errorf("reply %d (ID %s): "+format, append([]any{i, r.ID}, args...)...)
	}

	if r.Kind != domain.RequestForward && r.Kind != domain.RequestReverse {
		pf("kind %q not in {forward, reverse}", r.Kind)
	}
	if !replyStatuses[r.Status] {
		pf("unknown status %q", r.Status)
	}
	if r.ProcessedAt.IsZero() {
		pf("processed_at is zero")
	}

	if r.Status == domain.StatusOK {
		if r.Error != "" || r.ErrorKind != "" {
			pf("OK reply carries error %q (%s)", r.Error, r.ErrorKind)
		}
	} else {
		if r.Error == "" {
			pf("status %s without error", r.Status)
		}
		if r.Status != domain.StatusFailed && !errorKinds[r.ErrorKind] {
			pf("error_kind %q is not a known kind", r.ErrorKind)
		}
		if len(r.Locations) > 0 {
			pf("status %s with %d locations", r.Status, len(r.Locations))
		}
	}

	for j, loc := range r.Locations {
		if loc.Address == "" {
			pf("location %d: formatted_address is empty", j)
		}
		if loc.Lat < -90 || loc.Lat > 90 {
			pf("location %d: lat %g out of range", j, loc.Lat)
		}
		if loc.Lng < -180 || loc.Lng > 180 {
			pf("location %d: lng %g out of range", j, loc.Lng)
		}
	}
}
