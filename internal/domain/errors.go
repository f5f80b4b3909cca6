package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound               = errors.New("not found")
	ErrBadRequest             = errors.New("bad request")
	ErrInvalidChannel         = errors.New("invalid delivery channel")
	ErrEncryption             = errors.New("encryption failure")
	ErrDecryption             = errors.New("decryption failure")
	ErrStore                  = errors.New("store failure")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrContention             = errors.New("contention")
	ErrDelivery               = errors.New("delivery failure")
)
