package engine

// ErrorCode is a stable machine-readable identifier carried alongside the
// human-readable message in API responses.
type ErrorCode string

const (
	CodeInvalidOrderAmount  ErrorCode = "INVALID_ORDER_AMOUNT"
	CodeInvalidOrderPrice   ErrorCode = "INVALID_ORDER_PRICE"
	CodeInvalidOrderSide    ErrorCode = "INVALID_ORDER_SIDE"
	CodeOrderbookFull       ErrorCode = "ORDERBOOK_FULL"
	CodeTooManyUsers        ErrorCode = "TOO_MANY_USERS"
	CodeCalculationFailure  ErrorCode = "CALCULATION_FAILURE"
	CodeOrderNotFound       ErrorCode = "ORDER_NOT_FOUND"
	CodeOrderbookNotFound   ErrorCode = "ORDERBOOK_NOT_FOUND"
	CodeUserNotFound        ErrorCode = "USER_NOT_FOUND"
	CodeNotOrderOwner       ErrorCode = "NOT_ORDER_OWNER"
	CodeUnauthorized        ErrorCode = "UNAUTHORIZED"
	CodeInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"
)

type VenueError struct {
	Code    ErrorCode
	Message string
}

func (e *VenueError) Error() string {
	return e.Message
}

var (
	ErrInvalidOrderAmount  = &VenueError{CodeInvalidOrderAmount, "Order amount must be greater than zero"}
	ErrInvalidOrderPrice   = &VenueError{CodeInvalidOrderPrice, "Order price must be greater than zero"}
	ErrInvalidOrderSide    = &VenueError{CodeInvalidOrderSide, "Invalid order side"}
	ErrOrderbookFull       = &VenueError{CodeOrderbookFull, "Orderbook is full"}
	ErrTooManyUsers        = &VenueError{CodeTooManyUsers, "Too many users with balances"}
	ErrCalculationFailure  = &VenueError{CodeCalculationFailure, "Calculation overflow or underflow"}
	ErrOrderNotFound       = &VenueError{CodeOrderNotFound, "Order not found"}
	ErrOrderbookNotFound   = &VenueError{CodeOrderbookNotFound, "Orderbook not found"}
	ErrUserNotFound        = &VenueError{CodeUserNotFound, "User not found"}
	ErrNotOrderOwner       = &VenueError{CodeNotOrderOwner, "Not order owner"}
	ErrUnauthorized        = &VenueError{CodeUnauthorized, "Caller is not the orderbook authority"}
	ErrInsufficientBalance = &VenueError{CodeInsufficientBalance, "Insufficient balance"}
)
