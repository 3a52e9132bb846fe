package txn

import "errors"

// ErrTxClosed is returned by any mutating call against a WriteTx that
// has already left the Active state.
var ErrTxClosed = errors.New("txn: transaction is closed")
