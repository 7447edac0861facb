package domain

import "context"

// Assembler turns an upstream document into an invoice ready for signing.
type Assembler interface {
	Assemble(ctx context.Context, req AssembleRequest) (*Invoice, error)
}
