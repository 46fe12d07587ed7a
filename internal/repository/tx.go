package repository

import "context"

// TxManager runs fn inside a storage transaction carried by the context.
// Nested calls join the outer transaction.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
