package utils

import (
	"crypto/rand"
	"math/big"
)

// GenerateOTP returns an n-digit numeric one-time code. The rider shares it
// with the captain to confirm trip start.
func GenerateOTP(n int) string {
	if n <= 0 {
		n = 4
	}
	digits := make([]byte, n)
	for i := range digits {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			// crypto/rand failing is unrecoverable for OTP purposes
			panic(err)
		}
		digits[i] = byte('0' + v.Int64())
	}
	return string(digits)
}
