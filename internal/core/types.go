// Package core holds the data model shared by the order book, matching
// engine, risk gate, P&L tracker and strategy dispatcher: orders, trades,
// execution results and the enums that describe them.
package core

// Side is which side of the book an order sits on or crosses.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType is the action an incoming order requests.
type OrderType int

const (
	// Limit orders rest on the book at a specified price or better.
	Limit OrderType = iota
	// Market orders execute immediately against the best available prices.
	Market
	// Cancel removes an existing resting order.
	Cancel
	// Modify changes the price and/or quantity of an existing resting order.
	Modify
)

func (t OrderType) String() string {
	switch t {
	case Limit:
		return "LIMIT"
	case Market:
		return "MARKET"
	case Cancel:
		return "CANCEL"
	case Modify:
		return "MODIFY"
	default:
		return "UNKNOWN"
	}
}

// TimeInForce controls how a limit order behaves if it cannot fill
// completely against the book on arrival.
type TimeInForce int

const (
	// GTC orders rest until filled or cancelled.
	GTC TimeInForce = iota
	// IOC orders fill what they can immediately and cancel the remainder.
	IOC
	// FOK orders fill completely or are rejected outright.
	FOK
)

func (tif TimeInForce) String() string {
	switch tif {
	case GTC:
		return "GTC"
	case IOC:
		return "IOC"
	case FOK:
		return "FOK"
	default:
		return "UNKNOWN"
	}
}

// ExecutionStatus is the outcome of submitting an order to the engine.
type ExecutionStatus int

const (
	Filled ExecutionStatus = iota
	PartialFill
	Resting
	Cancelled
	Modified
	Rejected
)

func (s ExecutionStatus) String() string {
	switch s {
	case Filled:
		return "FILLED"
	case PartialFill:
		return "PARTIAL_FILL"
	case Resting:
		return "RESTING"
	case Cancelled:
		return "CANCELLED"
	case Modified:
		return "MODIFIED"
	case Rejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// RejectReason is the precise reject taxonomy surfaced to callers instead
// of a generic error; every reject path in the matching core must set one
// of these.
type RejectReason int

const (
	NoReject RejectReason = iota
	InvalidOrderId
	InvalidQuantity
	InvalidPrice
	PriceOutOfRange
	InvalidOrderType
	DuplicateOrderId
	OrderNotFound
	NoLiquidity
	FOKCannotFill
	ModifyNoChanges
	InternalError
)

func (r RejectReason) String() string {
	switch r {
	case NoReject:
		return "NONE"
	case InvalidOrderId:
		return "INVALID_ORDER_ID"
	case InvalidQuantity:
		return "INVALID_QUANTITY"
	case InvalidPrice:
		return "INVALID_PRICE"
	case PriceOutOfRange:
		return "PRICE_OUT_OF_RANGE"
	case InvalidOrderType:
		return "INVALID_ORDER_TYPE"
	case DuplicateOrderId:
		return "DUPLICATE_ORDER_ID"
	case OrderNotFound:
		return "ORDER_NOT_FOUND"
	case NoLiquidity:
		return "NO_LIQUIDITY"
	case FOKCannotFill:
		return "FOK_CANNOT_FILL"
	case ModifyNoChanges:
		return "MODIFY_NO_CHANGES"
	case InternalError:
		return "INTERNAL_ERROR"
	default:
		return "UNKNOWN"
	}
}

// MinPrice and MaxPrice bound the valid price range. The matching engine
// rejects a limit price below MinPrice with InvalidPrice and one above
// MaxPrice with PriceOutOfRange.
const (
	MinPrice int64 = 0
	MaxPrice int64 = 1_000_000_000
)

// Order is a single inbound instruction: a new limit/market order, or a
// cancel/modify targeting an existing resting order.
type Order struct {
	ID            uint64
	ClientID      uint64
	Timestamp     uint64
	Type          OrderType
	Side          Side
	Price         int64
	Quantity      uint64
	TIF           TimeInForce
	TargetID      uint64 // cancel/modify: the order being acted on
	NewPrice      int64  // modify: 0 keeps the original price
	NewQuantity   uint64 // modify: 0 keeps the original quantity
}

// Trade is a single matched segment between a buy and a sell order. One is
// emitted per matched pair segment, never merged across price levels.
type Trade struct {
	TradeID     uint64
	BuyOrderID  uint64
	SellOrderID uint64
	BuyClientID  uint64
	SellClientID uint64
	Price       int64
	Quantity    uint64
	Timestamp   uint64
}

// ExecutionResult is the single result type returned by every fallible
// matching operation (submit/cancel/modify). There is no separate
// error/optional/panic path for expected business outcomes: a reject is
// represented by Status == Rejected and a populated RejectReason.
type ExecutionResult struct {
	Status       ExecutionStatus
	OrderID      uint64
	ClientID     uint64
	FilledQty    uint64
	RemainingQty uint64
	Trades       []Trade
	RejectReason RejectReason
	Message      string
}

// HasFills reports whether this result produced at least one trade.
func (r ExecutionResult) HasFills() bool {
	return len(r.Trades) > 0
}

// IsReject reports whether the order was rejected outright.
func (r ExecutionResult) IsReject() bool {
	return r.Status == Rejected
}
