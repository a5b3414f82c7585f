// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package auth

import (
	"crypto/rand"
	"math/big"
	"strconv"

	"github.com/samber/oops"
)

// One-time codes are six decimal digits without a leading zero.
const (
	MinCode = 100000
	MaxCode = 999999
)

var codeSpan = big.NewInt(MaxCode - MinCode + 1)

// CodeGenerator produces one-time codes. Services accept one so tests can
// pin the issued value.
type CodeGenerator func() (string, error)

// GenerateCode returns a uniformly distributed code in [MinCode, MaxCode].
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpan)
	if err != nil {
		return "", oops.Code("CODE_GENERATE_FAILED").
			With("operation", "crypto/rand.Int").
			Wrap(err)
	}
	return strconv.FormatInt(n.Int64()+MinCode, 10), nil
}
