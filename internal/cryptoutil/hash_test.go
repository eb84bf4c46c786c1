package cryptoutil

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

func TestSHA256Hex_KnownVector(t *testing.T) {
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := SHA256Hex([]byte{}); got != want {
		t.Fatalf("SHA256Hex(empty) = %q, want %q", got, want)
	}
}

func TestSHA256Hex_Shape(t *testing.T) {
	got := SHA256Hex([]byte("lamgara"))
	if len(got) != 64 {
		t.Fatalf("length = %d, want 64", len(got))
	}
	if got != strings.ToLower(got) {
		t.Fatal("SHA256Hex should return lowercase hex")
	}
}

func TestHashEqual(t *testing.T) {
	h := SHA256Hex([]byte("test"))
	cases := []struct {
		name string
		a, b string
		want bool
	}{
		{"identical", h, h, true},
		{"different", h, SHA256Hex([]byte("other")), false},
		{"both empty", "", "", true},
		{"one empty", h, "", false},
		{"prefix", h, h[:32], false},
		{"case sensitive", strings.ToUpper(h), h, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HashEqual(tc.a, tc.b); got != tc.want {
				t.Fatalf("HashEqual = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBytesEqual(t *testing.T) {
	if !BytesEqual([]byte{1, 2, 3}, []byte{1, 2, 3}) {
		t.Fatal("equal slices should compare equal")
	}
	if BytesEqual([]byte{1, 2, 3}, []byte{1, 2}) {
		t.Fatal("length mismatch should not compare equal")
	}
}

// RFC 4231 test case 2
func TestHMACSHA256_KnownVector(t *testing.T) {
	got := hex.EncodeToString(HMACSHA256([]byte("Jefe"), []byte("what do ya want for nothing?")))
	want := "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843"
	if got != want {
		t.Fatalf("HMACSHA256 = %s, want %s", got, want)
	}
}

func FuzzSHA256Hex(f *testing.F) {
	f.Add([]byte(""))
	f.Add([]byte("hello"))
	f.Add([]byte{0xff, 0xfe, 0xfd})

	f.Fuzz(func(t *testing.T, data []byte) {
		result := SHA256Hex(data)
		h := sha256.Sum256(data)
		if want := hex.EncodeToString(h[:]); result != want {
			t.Errorf("SHA256Hex = %q, stdlib = %q", result, want)
		}
	})
}

func FuzzHashEqual(f *testing.F) {
	f.Add("abc", "abc")
	f.Add("abc", "def")
	f.Add("", "")

	f.Fuzz(func(t *testing.T, a, b string) {
		if got := HashEqual(a, b); got != (a == b) {
			t.Errorf("HashEqual(%q, %q) = %v", a, b, got)
		}
		if HashEqual(a, b) != HashEqual(b, a) {
			t.Errorf("HashEqual not symmetric for %q, %q", a, b)
		}
	})
}
