package binaryserializer

import (
	"bytes"
	"testing"
)

// TestIntegerRoundTrips writes each fixed-width integer and reads it back.
func TestIntegerRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	if err := PutUint8(&buf, 0xab); err != nil {
		t.Fatalf("PutUint8: unexpected error: %v", err)
	}
	if err := PutUint16(&buf, 0xabcd); err != nil {
		t.Fatalf("PutUint16: unexpected error: %v", err)
	}
	if err := PutUint32(&buf, 0xdeadbeef); err != nil {
		t.Fatalf("PutUint32: unexpected error: %v", err)
	}
	if err := PutUint64(&buf, 0x1122334455667788); err != nil {
		t.Fatalf("PutUint64: unexpected error: %v", err)
	}

	r := bytes.NewReader(buf.Bytes())
	if got, err := Uint8(r); err != nil || got != 0xab {
		t.Fatalf("Uint8 returned (%#x, %v), want (0xab, nil)", got, err)
	}
	if got, err := Uint16(r); err != nil || got != 0xabcd {
		t.Fatalf("Uint16 returned (%#x, %v), want (0xabcd, nil)", got, err)
	}
	if got, err := Uint32(r); err != nil || got != 0xdeadbeef {
		t.Fatalf("Uint32 returned (%#x, %v), want (0xdeadbeef, nil)", got, err)
	}
	if got, err := Uint64(r); err != nil || got != 0x1122334455667788 {
		t.Fatalf("Uint64 returned (%#x, %v), want (0x1122334455667788, nil)", got, err)
	}

	if _, err := Uint32(r); err == nil {
		t.Fatal("Uint32 on an exhausted reader did not fail")
	}
}

// TestVarUint checks the seven-bit continuation encoding at its boundaries.
func TestVarUint(t *testing.T) {
	tests := []struct {
		name     string
		val      uint64
		encoding []byte
	}{
		{name: "zero", val: 0, encoding: []byte{0x00}},
		{name: "single byte max", val: 0x7f, encoding: []byte{0x7f}},
		{name: "two bytes min", val: 0x80, encoding: []byte{0x80, 0x01}},
		{name: "two bytes", val: 300, encoding: []byte{0xac, 0x02}},
		{name: "max uint32", val: 0xffffffff, encoding: []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
		{name: "max uint64", val: 0xffffffffffffffff,
			encoding: []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}},
	}

	for _, test := range tests {
		var buf bytes.Buffer
		if err := PutVarUint(&buf, test.val); err != nil {
			t.Errorf("%s: PutVarUint: unexpected error: %v", test.name, err)
			continue
		}
		if !bytes.Equal(buf.Bytes(), test.encoding) {
			t.Errorf("%s: encoded as %x, want %x", test.name, buf.Bytes(), test.encoding)
			continue
		}
		got, err := VarUint(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Errorf("%s: VarUint: unexpected error: %v", test.name, err)
			continue
		}
		if got != test.val {
			t.Errorf("%s: decoded %d, want %d", test.name, got, test.val)
		}
	}
}

// TestVarUintOverflow rejects encodings that do not fit 64 bits.
func TestVarUintOverflow(t *testing.T) {
	overflowing := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x02}
	if _, err := VarUint(bytes.NewReader(overflowing)); err == nil {
		t.Fatal("VarUint accepted a 65-bit value")
	}

	tooLong := bytes.Repeat([]byte{0x80}, 11)
	if _, err := VarUint(bytes.NewReader(tooLong)); err == nil {
		t.Fatal("VarUint accepted an over-long encoding")
	}

	truncated := []byte{0x80}
	if _, err := VarUint(bytes.NewReader(truncated)); err == nil {
		t.Fatal("VarUint accepted a truncated encoding")
	}
}
