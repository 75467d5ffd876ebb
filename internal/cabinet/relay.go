package cabinet

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/goburrow/modbus"
)

// Relay mirrors the cabinet's power state onto a real strip controller over
// Modbus TCP. Coil address, slave id and timeout are read from the
// environment at call time so they can be retuned without a restart.
type Relay struct {
	addr string
}

func NewRelay(addr string) *Relay {
	return &Relay{addr: addr}
}

func getenvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getRelayTimeout() time.Duration {
	return time.Duration(getenvInt("MODBUS_TIMEOUT_MS", 5000)) * time.Millisecond
}
func getRelaySlaveID() byte {
	return byte(getenvInt("MODBUS_SLAVE_ID", 1))
}
func getRelayCoil() uint16 {
	return uint16(getenvInt("MODBUS_COIL", 1))
}

// SetPower writes the on/off coil on the controller.
func (r *Relay) SetPower(on bool) error {
	h := modbus.NewTCPClientHandler(r.addr)
	h.Timeout = getRelayTimeout()
	h.SlaveId = getRelaySlaveID()

	if err := h.Connect(); err != nil {
		return fmt.Errorf("modbus connect: %w", err)
	}
	defer h.Close()

	client := modbus.NewClient(h)
	value := uint16(0x0000)
	if on {
		value = 0xFF00
	}
	if _, err := client.WriteSingleCoil(getRelayCoil(), value); err != nil {
		return fmt.Errorf("coil write: %w", err)
	}
	return nil
}
