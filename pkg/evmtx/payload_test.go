// Copyright 2025 Certen Protocol

package evmtx

import "testing"

func TestPayload_MarshalUnmarshal(t *testing.T) {
	p := &Payload{
		To:      [20]byte{1, 2, 3},
		Data:    []byte{0xde, 0xad},
		ChainID: 5,
	}

	body, err := p.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := Unmarshal(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.To != p.To {
		t.Errorf("to = %x, want %x", got.To, p.To)
	}
	if string(got.Data) != string(p.Data) {
		t.Errorf("data = %x, want %x", got.Data, p.Data)
	}
	if got.ChainID != p.ChainID {
		t.Errorf("chain id = %d, want %d", got.ChainID, p.ChainID)
	}
}
