package auth

import (
	"testing"
	"time"
)

var testSecret = []byte("test-signing-key")

func TestGenerateToken_RoundTrip(t *testing.T) {
	token, err := GenerateToken("a@x.com", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	subject, err := SubjectFromToken(token, testSecret)
	if err != nil {
		t.Fatalf("SubjectFromToken failed: %v", err)
	}
	if subject != "a@x.com" {
		t.Errorf("subject = %q, want %q", subject, "a@x.com")
	}
}

// 期限切れトークンは署名が正しくても検証に失敗することを検証。
func TestSubjectFromToken_Expired(t *testing.T) {
	token, err := GenerateToken("a@x.com", testSecret, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	_, err = SubjectFromToken(token, testSecret)
	if err != ErrInvalidToken {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
}

func TestSubjectFromToken_WrongKey(t *testing.T) {
	token, err := GenerateToken("a@x.com", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	_, err = SubjectFromToken(token, []byte("another-key"))
	if err != ErrInvalidToken {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
}

func TestSubjectFromToken_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"空文字", ""},
		{"JWT形式でない", "not-a-jwt"},
		{"署名部欠落", "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJhQHguY29tIn0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := SubjectFromToken(tt.token, testSecret); err != ErrInvalidToken {
				t.Errorf("error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

// alg=noneのような非HMACトークンを拒否することを検証。
// ヘッダー {"alg":"none","typ":"JWT"} のトークンは署名検証前に拒否される。
func TestSubjectFromToken_RejectsNoneAlgorithm(t *testing.T) {
	noneToken := "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJzdWIiOiJhQHguY29tIn0."
	if _, err := SubjectFromToken(noneToken, testSecret); err != ErrInvalidToken {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
}

func TestSubjectFromToken_EmptySubject(t *testing.T) {
	token, err := GenerateToken("", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if _, err := SubjectFromToken(token, testSecret); err != ErrInvalidToken {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
}
