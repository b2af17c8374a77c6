package mfa

import (
	"testing"
)

func TestGenerateOTP_ReturnsSixDigits(t *testing.T) {
	for i := 0; i < 500; i++ {
		otp, err := GenerateOTP()
		if err != nil {
			t.Fatalf("GenerateOTP: %v", err)
		}
		if len(otp) != 6 {
			t.Fatalf("OTP %q length = %d, want 6", otp, len(otp))
		}
		for _, c := range otp {
			if c < '0' || c > '9' {
				t.Fatalf("OTP %q contains non-digit %c", otp, c)
			}
		}
	}
}

func TestGenerateOTP_Varies(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		otp, err := GenerateOTP()
		if err != nil {
			t.Fatalf("GenerateOTP: %v", err)
		}
		seen[otp] = true
	}
	if len(seen) < 40 {
		t.Errorf("only %d distinct codes in 50 draws", len(seen))
	}
}

func TestOTPLimit(t *testing.T) {
	if otpLimit%otpSpace != 0 || otpLimit > 1<<32 || (1<<32)-otpLimit >= otpSpace {
		t.Errorf("otpLimit %d is not the largest multiple of %d below 2^32", otpLimit, otpSpace)
	}
}

func TestHashOTP(t *testing.T) {
	h := HashOTP("123456")
	if h != HashOTP("123456") {
		t.Error("HashOTP not consistent")
	}
	if len(h) != 64 {
		t.Errorf("hash length = %d, want 64 (SHA-256 hex)", len(h))
	}
	if h == HashOTP("654321") {
		t.Error("HashOTP produced same hash for different inputs")
	}
}

func TestOTPEqual(t *testing.T) {
	stored := HashOTP("123456")
	if !OTPEqual("123456", stored) {
		t.Error("OTPEqual should match correct OTP")
	}
	if OTPEqual("654321", stored) {
		t.Error("OTPEqual should reject incorrect OTP")
	}
	if OTPEqual("", "") {
		t.Error("OTPEqual should not match empty inputs")
	}
}
