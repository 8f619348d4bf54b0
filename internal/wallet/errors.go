package wallet

import (
	"errors"
	"fmt"
)

// ErrUnsupportedOperation is returned when an operation requires a
// smart-wallet capability (such as atomic batching) the wallet type lacks.
var ErrUnsupportedOperation = errors.New("operation is not supported by this wallet type")

// ConfigurationError reports invalid wallet construction input, detected
// before any network call so misconfiguration fails fast.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return e.Msg }

// SendError wraps any failure in the prepare/sign/submit/wait pipeline.
// A send either fully succeeds with a receipt or surfaces as this error;
// partial progress is never reported as success.
type SendError struct {
	ChainID uint64
	Cause   error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("failed to send transaction on chain %d: %v", e.ChainID, e.Cause)
}

func (e *SendError) Unwrap() error { return e.Cause }
