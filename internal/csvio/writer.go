package csvio

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"mercury/internal/core"
	"mercury/internal/pnl"
	"mercury/internal/risk"
)

// TradeWriter appends matched trades to a CSV file, writing the header
// once on first open. Column layout:
// trade_id,timestamp,buy_order_id,sell_order_id,price,quantity.
type TradeWriter struct {
	file    *os.File
	w       *bufio.Writer
	written uint64
}

// NewTradeWriter opens filepath for appending, writing a header row if
// the file is new.
func NewTradeWriter(filepath string) (*TradeWriter, error) {
	isNew := !fileExists(filepath)
	f, err := os.OpenFile(filepath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("csvio: open %s: %w", filepath, err)
	}
	tw := &TradeWriter{file: f, w: bufio.NewWriter(f)}
	if isNew {
		fmt.Fprintln(tw.w, "trade_id,timestamp,buy_order_id,sell_order_id,price,quantity")
	}
	return tw, nil
}

// WriteTrade appends one trade row.
func (w *TradeWriter) WriteTrade(t core.Trade) error {
	_, err := fmt.Fprintf(w.w, "%d,%d,%d,%d,%d,%d\n",
		t.TradeID, t.Timestamp, t.BuyOrderID, t.SellOrderID, t.Price, t.Quantity)
	if err != nil {
		return err
	}
	w.written++
	return nil
}

// WriteTrades appends every trade in trades, stopping at the first
// write error.
func (w *TradeWriter) WriteTrades(trades []core.Trade) (int, error) {
	for i, t := range trades {
		if err := w.WriteTrade(t); err != nil {
			return i, err
		}
	}
	return len(trades), nil
}

// TradeCount reports how many rows have been written.
func (w *TradeWriter) TradeCount() uint64 { return w.written }

// Flush pushes buffered writes to the underlying file.
func (w *TradeWriter) Flush() error { return w.w.Flush() }

// Close flushes and closes the file.
func (w *TradeWriter) Close() error {
	if err := w.w.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// ExecutionReportWriter appends one row per processed order. Column layout:
// order_id,timestamp,type,side,status,reject_reason,filled_qty,remaining_qty,trade_count,avg_price.
type ExecutionReportWriter struct {
	file    *os.File
	w       *bufio.Writer
	written uint64
}

// NewExecutionReportWriter opens filepath for appending, writing a
// header row if the file is new.
func NewExecutionReportWriter(filepath string) (*ExecutionReportWriter, error) {
	isNew := !fileExists(filepath)
	f, err := os.OpenFile(filepath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("csvio: open %s: %w", filepath, err)
	}
	rw := &ExecutionReportWriter{file: f, w: bufio.NewWriter(f)}
	if isNew {
		fmt.Fprintln(rw.w, "order_id,timestamp,type,side,status,reject_reason,filled_qty,remaining_qty,trade_count,avg_price")
	}
	return rw, nil
}

// WriteReport appends one execution report row for order/result.
func (w *ExecutionReportWriter) WriteReport(order core.Order, result core.ExecutionResult) error {
	_, err := fmt.Fprintf(w.w, "%d,%d,%s,%s,%s,%s,%d,%d,%d,%d\n",
		result.OrderID, order.Timestamp, order.Type.String(), order.Side.String(),
		result.Status.String(), result.RejectReason.String(),
		result.FilledQty, result.RemainingQty, len(result.Trades), averagePrice(result.Trades))
	if err != nil {
		return err
	}
	w.written++
	return nil
}

// ReportCount reports how many rows have been written.
func (w *ExecutionReportWriter) ReportCount() uint64 { return w.written }

// Flush pushes buffered writes to the underlying file.
func (w *ExecutionReportWriter) Flush() error { return w.w.Flush() }

// Close flushes and closes the file.
func (w *ExecutionReportWriter) Close() error {
	if err := w.w.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func averagePrice(trades []core.Trade) int64 {
	if len(trades) == 0 {
		return 0
	}
	var totalValue int64
	var totalQty uint64
	for _, t := range trades {
		totalValue += t.Price * int64(t.Quantity)
		totalQty += t.Quantity
	}
	if totalQty == 0 {
		return 0
	}
	return totalValue / int64(totalQty)
}

// RiskEventWriter appends one row per risk-gate decision. Column layout:
// event_id,timestamp,order_id,client_id,event_type,current_value,limit_value,requested_value,details.
type RiskEventWriter struct {
	file    *os.File
	w       *bufio.Writer
	written uint64
}

// NewRiskEventWriter opens filepath for appending, writing a header row
// if the file is new.
func NewRiskEventWriter(filepath string) (*RiskEventWriter, error) {
	isNew := !fileExists(filepath)
	f, err := os.OpenFile(filepath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("csvio: open %s: %w", filepath, err)
	}
	rw := &RiskEventWriter{file: f, w: bufio.NewWriter(f)}
	if isNew {
		fmt.Fprintln(rw.w, "event_id,timestamp,order_id,client_id,event_type,current_value,limit_value,requested_value,details")
	}
	return rw, nil
}

// WriteEvent appends one risk event row. Commas and newlines in
// ev.Details are replaced with spaces rather than quote-escaped, since
// the column layout has no quoting convention of its own.
func (w *RiskEventWriter) WriteEvent(ev risk.Event) error {
	_, err := fmt.Fprintf(w.w, "%d,%d,%d,%d,%s,%d,%d,%d,%s\n",
		ev.EventID, ev.Timestamp, ev.OrderID, ev.ClientID, ev.Type.String(),
		ev.CurrentValue, ev.LimitValue, ev.RequestedValue, sanitizeDetails(ev.Details))
	if err != nil {
		return err
	}
	w.written++
	return nil
}

func sanitizeDetails(s string) string {
	s = strings.ReplaceAll(s, ",", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return s
}

// EventCount reports how many rows have been written.
func (w *RiskEventWriter) EventCount() uint64 { return w.written }

// Flush pushes buffered writes to the underlying file.
func (w *RiskEventWriter) Flush() error { return w.w.Flush() }

// Close flushes and closes the file.
func (w *RiskEventWriter) Close() error {
	if err := w.w.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// PnLWriter appends one row per emitted P&L snapshot. Column layout:
// snapshot_id,timestamp,client_id,net_position,long_qty,short_qty,realized_pnl,unrealized_pnl,total_pnl,mark_price,cost_basis,avg_entry_price,trade_id.
type PnLWriter struct {
	file    *os.File
	w       *bufio.Writer
	written uint64
}

// NewPnLWriter opens filepath for appending, writing a header row if
// the file is new.
func NewPnLWriter(filepath string) (*PnLWriter, error) {
	isNew := !fileExists(filepath)
	f, err := os.OpenFile(filepath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("csvio: open %s: %w", filepath, err)
	}
	pw := &PnLWriter{file: f, w: bufio.NewWriter(f)}
	if isNew {
		fmt.Fprintln(pw.w, "snapshot_id,timestamp,client_id,net_position,long_qty,short_qty,realized_pnl,unrealized_pnl,total_pnl,mark_price,cost_basis,avg_entry_price,trade_id")
	}
	return pw, nil
}

// WriteSnapshot appends one P&L snapshot row.
func (w *PnLWriter) WriteSnapshot(s pnl.Snapshot) error {
	_, err := fmt.Fprintf(w.w, "%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d\n",
		s.SnapshotID, s.Timestamp, s.ClientID, s.NetPosition, s.LongQty, s.ShortQty,
		s.RealizedPnL, s.UnrealizedPnL, s.TotalPnL, s.MarkPrice, s.CostBasis, s.AvgEntryPrice, s.TradeID)
	if err != nil {
		return err
	}
	w.written++
	return nil
}

// SnapshotCount reports how many rows have been written.
func (w *PnLWriter) SnapshotCount() uint64 { return w.written }

// Flush pushes buffered writes to the underlying file.
func (w *PnLWriter) Flush() error { return w.w.Flush() }

// Close flushes and closes the file.
func (w *PnLWriter) Close() error {
	if err := w.w.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
