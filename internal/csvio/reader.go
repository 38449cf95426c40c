// Package csvio reads inbound order CSV files and writes the four
// outbound report streams: trades, execution reports, risk events, and
// P&L snapshots.
package csvio

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"mercury/internal/core"
)

// parallelThreshold is the file-size cutoff, in bytes, above which
// Reader.ParseFile switches to a goroutine-per-chunk parallel parse.
const parallelThreshold = 4 * 1024 * 1024

// minChunkSize keeps chunks from subdividing pointlessly on small files
// that happen to sit just above the threshold.
const minChunkSize = 1024

// Reader parses "id,timestamp,type,side,price,quantity[,client_id]" rows
// into core.Order values, skipping (and counting) any row that fails to
// parse or fails core validation rather than aborting the whole file on
// one bad row.
type Reader struct {
	logger zerolog.Logger

	ParseErrors     int
	LinesProcessed  int
}

// NewReader returns a Reader.
func NewReader(logger zerolog.Logger) *Reader {
	return &Reader{logger: logger}
}

// ParseFile reads filepath and returns every successfully parsed order,
// skipping the header row. Files at or above parallelThreshold are
// parsed with one goroutine per chunk.
func (r *Reader) ParseFile(filepath string) ([]core.Order, error) {
	info, err := os.Stat(filepath)
	if err != nil {
		return nil, fmt.Errorf("csvio: stat %s: %w", filepath, err)
	}
	if info.Size() >= parallelThreshold {
		return r.parseFileParallel(filepath)
	}
	return r.parseFileSequential(filepath)
}

func (r *Reader) parseFileSequential(filepath string) ([]core.Order, error) {
	f, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("csvio: open %s: %w", filepath, err)
	}
	defer f.Close()

	var orders []core.Order
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			first = false
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		r.LinesProcessed++
		order, ok := parseLine(line)
		if !ok {
			r.ParseErrors++
			r.logger.Warn().Int("line", r.LinesProcessed).Msg("csvio: failed to parse order line")
			continue
		}
		orders = append(orders, order)
	}
	if err := scanner.Err(); err != nil {
		return orders, fmt.Errorf("csvio: scan %s: %w", filepath, err)
	}
	return orders, nil
}

// parseFileParallel reads the whole file into memory, splits it into
// four chunks on line boundaries, and parses each chunk in its own
// goroutine.
func (r *Reader) parseFileParallel(filepath string) ([]core.Order, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("csvio: read %s: %w", filepath, err)
	}
	if len(content) == 0 {
		return nil, nil
	}

	headerEnd := strings.IndexByte(string(content), '\n')
	if headerEnd < 0 {
		return nil, nil
	}
	dataStart := headerEnd + 1

	numChunks := 4
	chunks := splitIntoChunks(content, dataStart, numChunks)

	results := make([]chunkResult, len(chunks))

	var wg sync.WaitGroup
	for i, c := range chunks {
		wg.Add(1)
		go func(i int, start, end int) {
			defer wg.Done()
			results[i] = parseChunk(content, start, end)
		}(i, c.start, c.end)
	}
	wg.Wait()

	var orders []core.Order
	for _, res := range results {
		orders = append(orders, res.orders...)
		r.ParseErrors += res.errs
		r.LinesProcessed += res.lines
	}
	return orders, nil
}

type byteRange struct{ start, end int }

// splitIntoChunks divides content[dataStart:] into numChunks byte ranges
// snapped to line boundaries, falling back to a single chunk when the
// content is too small to divide usefully.
func splitIntoChunks(content []byte, dataStart, numChunks int) []byteRange {
	size := len(content)
	if numChunks <= 0 || dataStart >= size {
		return nil
	}
	remaining := size - dataStart
	chunkSize := remaining / numChunks
	if chunkSize < minChunkSize {
		return []byteRange{{dataStart, size}}
	}

	var chunks []byteRange
	start := dataStart
	for i := 0; i < numChunks && start < size; i++ {
		end := size
		if i != numChunks-1 {
			end = start + chunkSize
			if nl := indexNewlineFrom(content, end); nl >= 0 {
				end = nl + 1
			} else {
				end = size
			}
		}
		if start < end {
			chunks = append(chunks, byteRange{start, end})
		}
		start = end
	}
	return chunks
}

func indexNewlineFrom(content []byte, from int) int {
	if from >= len(content) {
		return -1
	}
	rel := strings.IndexByte(string(content[from:]), '\n')
	if rel < 0 {
		return -1
	}
	return from + rel
}

// chunkResult is one goroutine's contribution to a parallel parse.
type chunkResult struct {
	orders []core.Order
	errs   int
	lines  int
}

func parseChunk(content []byte, start, end int) chunkResult {
	var out chunkResult
	pos := start
	for pos < end {
		lineEnd := indexNewlineFrom(content, pos)
		if lineEnd < 0 || lineEnd >= end {
			lineEnd = end
		}
		line := strings.TrimRight(string(content[pos:lineEnd]), "\r")
		if strings.TrimSpace(line) != "" {
			out.lines++
			if order, ok := parseLine(line); ok {
				out.orders = append(out.orders, order)
			} else {
				out.errs++
			}
		}
		pos = lineEnd + 1
	}
	return out
}

// parseLine parses one "id,timestamp,type,side,price,quantity[,client_id]"
// row, reporting ok=false for a malformed row or one that fails core
// validation.
func parseLine(line string) (core.Order, bool) {
	fields := strings.Split(line, ",")
	if len(fields) < 6 {
		return core.Order{}, false
	}

	id, err := strconv.ParseUint(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		return core.Order{}, false
	}
	timestamp, err := strconv.ParseUint(strings.TrimSpace(fields[1]), 10, 64)
	if err != nil {
		return core.Order{}, false
	}
	orderType, ok := parseOrderType(strings.TrimSpace(fields[2]))
	if !ok {
		return core.Order{}, false
	}
	side, ok := parseSide(strings.TrimSpace(fields[3]))
	if !ok {
		return core.Order{}, false
	}
	price, err := strconv.ParseInt(strings.TrimSpace(fields[4]), 10, 64)
	if err != nil {
		return core.Order{}, false
	}
	quantity, err := strconv.ParseUint(strings.TrimSpace(fields[5]), 10, 64)
	if err != nil {
		return core.Order{}, false
	}

	var order core.Order
	switch orderType {
	case core.Cancel, core.Modify:
		// The ingest format carries no separate target column: the id
		// field names the resting order being acted on, and for a
		// modify the price/quantity fields carry the requested new
		// values (0 meaning "keep the existing one").
		order = core.Order{
			ID: id, Timestamp: timestamp, Type: orderType, Side: side,
			TargetID: id, NewPrice: price, NewQuantity: quantity,
		}
	default:
		order = core.Order{
			ID: id, Timestamp: timestamp, Type: orderType, Side: side,
			Price: price, Quantity: quantity,
		}
	}

	if len(fields) >= 7 {
		if s := strings.TrimSpace(fields[6]); s != "" {
			clientID, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				return core.Order{}, false
			}
			order.ClientID = clientID
		}
	}

	if !validOrder(order) {
		return core.Order{}, false
	}
	return order, true
}

func validOrder(o core.Order) bool {
	switch o.Type {
	case core.Cancel, core.Modify:
		return o.TargetID != 0
	default:
		if o.ID == 0 || o.Quantity == 0 {
			return false
		}
		if o.Price < core.MinPrice || o.Price > core.MaxPrice {
			return false
		}
		return true
	}
}

func parseOrderType(s string) (core.OrderType, bool) {
	switch strings.ToLower(s) {
	case "market":
		return core.Market, true
	case "limit":
		return core.Limit, true
	case "cancel":
		return core.Cancel, true
	case "modify":
		return core.Modify, true
	default:
		return 0, false
	}
}

func parseSide(s string) (core.Side, bool) {
	switch strings.ToLower(s) {
	case "buy", "b":
		return core.Buy, true
	case "sell", "s":
		return core.Sell, true
	default:
		return 0, false
	}
}
