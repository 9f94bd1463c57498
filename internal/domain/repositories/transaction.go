package repositories

import "context"

// TxFn is the unit of work run by a TransactionManager.
type TxFn func(ctx context.Context) error

// TransactionManager runs a unit of work atomically. The context handed to fn
// carries the transaction; an error from fn rolls everything back.
type TransactionManager interface {
	ExecTx(ctx context.Context, fn TxFn) error
}
