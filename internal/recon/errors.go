package recon

import "errors"

var (
	ErrAlreadyMatched = errors.New("recon: transaction already matched")
	ErrMatchNotFound  = errors.New("recon: no match for transaction")
	ErrBadConfidence  = errors.New("recon: confidence must be between 0 and 100")
)
