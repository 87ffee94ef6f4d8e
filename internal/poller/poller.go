// internal/poller/poller.go
package poller

import (
	"errors"
	"fmt"
	"time"

	"github.com/tamzrod/pv-reporter/internal/decoder"
	"github.com/tamzrod/pv-reporter/internal/fault"
)

// Client abstracts the Modbus operations the poller needs.
type Client interface {
	ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) // FC 3
	ReadInputRegisters(addr, qty uint16) ([]uint16, error)   // FC 4
}

// Opener opens a connection scoped to exactly one transaction.
// The returned closer is always called, success or not.
type Opener func(slaveID uint8) (Client, func() error, error)

// Config is the minimal runtime config the poller needs.
type Config struct {
	Device  string
	Address uint8
	Clock   func() time.Time // local time; defaults to time.Now
}

// Poller reads one inverter. It owns no connection between transactions.
type Poller struct {
	cfg      Config
	open     Opener
	identity decoder.DeviceIdentity
}

// New creates a poller with immutable config.
func New(cfg Config, open Opener) (*Poller, error) {
	if cfg.Device == "" {
		return nil, errors.New("poller: device name required")
	}
	if open == nil {
		return nil, errors.New("poller: opener required")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Poller{
		cfg:      cfg,
		open:     open,
		identity: decoder.SentinelIdentity(),
	}, nil
}

// Device returns the configured device name.
func (p *Poller) Device() string { return p.cfg.Device }

// PollOnce performs exactly one input-register transaction and decodes it.
// Any transport failure yields a sentinel reading and a fault.Transport error;
// the decoder is never called on a failed transaction.
func (p *Poller) PollOnce() PollResult {
	now := p.cfg.Clock()
	res := PollResult{
		Device:  p.cfg.Device,
		Address: p.cfg.Address,
		At:      now,
	}

	regs, err := p.transact(telemetryBlock)
	if err != nil {
		res.Reading = decoder.SentinelReading(now)
		res.Err = err
		return res
	}

	res.Reading = decoder.DecodeInput(regs, now)
	return res
}

// ReadVersion performs one holding-register transaction and decodes identity.
// On failure the cached identity resets to the sentinel.
func (p *Poller) ReadVersion() (decoder.DeviceIdentity, error) {
	regs, err := p.transact(identityBlock)
	if err != nil {
		p.identity = decoder.SentinelIdentity()
		return p.identity, err
	}

	p.identity = decoder.DecodeHolding(regs)
	return p.identity, nil
}

// Identity returns the last decoded identity (sentinel until a read succeeds).
func (p *Poller) Identity() decoder.DeviceIdentity {
	return p.identity
}

// transact opens, reads one block, and closes regardless of outcome.
// Short responses are rejected here so the decoder never sees them.
func (p *Poller) transact(rb ReadBlock) (regs []uint16, err error) {
	client, closeFn, err := p.open(p.cfg.Address)
	if err != nil {
		return nil, p.transportErr(fmt.Errorf("open: %w", err))
	}
	if closeFn != nil {
		// a close failure after a good read does not void the data
		defer func() { _ = closeFn() }()
	}

	switch rb.FC {
	case FCHoldingRegisters:
		regs, err = client.ReadHoldingRegisters(rb.Address, rb.Quantity)
	case FCInputRegisters:
		regs, err = client.ReadInputRegisters(rb.Address, rb.Quantity)
	default:
		return nil, p.transportErr(fmt.Errorf("unsupported function code %d", rb.FC))
	}
	if err != nil {
		return nil, p.transportErr(fmt.Errorf("fc=%d addr=%d qty=%d: %w", rb.FC, rb.Address, rb.Quantity, err))
	}
	if len(regs) < int(rb.Quantity) {
		return nil, p.transportErr(fmt.Errorf("fc=%d short response: got %d registers, want %d", rb.FC, len(regs), rb.Quantity))
	}
	return regs, nil
}

func (p *Poller) transportErr(err error) error {
	return fault.New(fault.Transport, p.cfg.Device, fmt.Errorf("poller: %w", err))
}
