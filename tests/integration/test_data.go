package integration

import (
	"fmt"
	"sync/atomic"
)

var phoneCounter atomic.Int64

// TestPhoneNumber generates a unique Danish test phone number per call
func TestPhoneNumber() string {
	n := phoneCounter.Add(1)
	return fmt.Sprintf("+45209%05d", n%100000)
}

// TestPassword is a fixed password that satisfies the length policy
const TestPassword = "integration-test-password"

// ExtractCodeFromSMS extracts the six digit code from a message body.
// All code-bearing messages end with the code.
func ExtractCodeFromSMS(message string) string {
	if len(message) < 6 {
		return ""
	}
	return message[len(message)-6:]
}
