package bytesize

import "testing"

func TestParse(t *testing.T) {
	cases := map[string]ByteSize{
		"1024":   1024,
		"5Mi":    5 * MiB,
		"5MiB":   5 * MiB,
		"16mi":   16 * MiB,
		"100MB":  100 * MB,
		"1Gi":    GiB,
		"2T":     2 * TB,
		"512 b":  512,
		" 7Ki ":  7 * KiB,
	}

	for in, want := range cases {
		got, err := Parse(in)
		if err != nil {
			t.Errorf("Parse(%q) returned error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("Parse(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"", "Mi", "12XB", "-5Mi", "1.5Gi"} {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q) should have failed", in)
		}
	}
}

func TestUnmarshalText(t *testing.T) {
	var b ByteSize
	if err := b.UnmarshalText([]byte("5Mi")); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if b != 5*MiB {
		t.Errorf("got %d, want %d", b, 5*MiB)
	}
}

func TestString(t *testing.T) {
	cases := map[ByteSize]string{
		512:     "512B",
		KiB:     "1KiB",
		5 * MiB: "5MiB",
		3 * GiB: "3GiB",
	}
	for in, want := range cases {
		if got := in.String(); got != want {
			t.Errorf("(%d).String() = %q, want %q", uint64(in), got, want)
		}
	}
}
