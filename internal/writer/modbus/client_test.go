// internal/writer/modbus/client_test.go
package modbus

import (
	"bytes"
	"testing"
)

type fakeWriter struct {
	addr  uint16
	qty   uint16
	value []byte
	calls int
}

func (f *fakeWriter) WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error) {
	f.calls++
	f.addr, f.qty, f.value = address, quantity, value
	return nil, nil
}

func TestWriteRegisters_BigEndian(t *testing.T) {
	fw := &fakeWriter{}
	c := &EndpointClient{client: fw}

	if err := c.WriteRegisters(1, 40, []uint16{0x0102, 0xA0B0}); err != nil {
		t.Fatalf("err=%v", err)
	}
	if fw.addr != 40 || fw.qty != 2 {
		t.Fatalf("addr=%d qty=%d", fw.addr, fw.qty)
	}
	if !bytes.Equal(fw.value, []byte{0x01, 0x02, 0xA0, 0xB0}) {
		t.Fatalf("payload=% x", fw.value)
	}
}

func TestWriteRegisters_Empty(t *testing.T) {
	fw := &fakeWriter{}
	c := &EndpointClient{client: fw}

	if err := c.WriteRegisters(1, 0, nil); err != nil {
		t.Fatalf("err=%v", err)
	}
	if fw.calls != 0 {
		t.Fatalf("empty write reached the wire")
	}
}

func TestNewEndpointClient_RequiresEndpoint(t *testing.T) {
	if _, err := NewEndpointClient(Config{}); err == nil {
		t.Fatal("expected error")
	}
}
