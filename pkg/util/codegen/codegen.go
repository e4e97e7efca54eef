// Package codegen produces human-readable identifiers for sales, agents,
// closers and payments.
package codegen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Random returns length characters drawn uniformly from A-Z0-9.
func Random(length int) (string, error) {
	code := make([]byte, length)
	max := big.NewInt(int64(len(charset)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		code[i] = charset[n.Int64()]
	}
	return string(code), nil
}

// SaleReference returns SL-YYYYMM-XXXXXXXX for the month of at.
func SaleReference(at time.Time) (string, error) {
	suffix, err := Random(8)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SL-%s-%s", at.UTC().Format("200601"), suffix), nil
}

// PaymentReference returns PAY-YYYYMM-XXXXXXXX for the month of at.
func PaymentReference(at time.Time) (string, error) {
	suffix, err := Random(8)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("PAY-%s-%s", at.UTC().Format("200601"), suffix), nil
}

// AgentCode returns AGT-XXXXXX.
func AgentCode() (string, error) {
	return prefixed("AGT")
}

// CloserCode returns CLS-XXXXXX.
func CloserCode() (string, error) {
	return prefixed("CLS")
}

func prefixed(prefix string) (string, error) {
	suffix, err := Random(6)
	if err != nil {
		return "", err
	}
	return prefix + "-" + suffix, nil
}
