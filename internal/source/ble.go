package source

import (
	"context"
	"fmt"

	"tinygo.org/x/bluetooth"
)

// bleSource listens for advertisement broadcasts on the default
// bluetooth adapter. The device never accepts connections, so a
// session is just a running scan filtered down to the configured
// device name and company identifier.
type bleSource struct {
	device    string
	companyID uint16
}

var _ Source = (*bleSource)(nil)
var _ Session = (*bleSession)(nil)

func NewBLE(device string, companyID uint16) Source {
	return &bleSource{device: device, companyID: companyID}
}

func (s *bleSource) Open(ctx context.Context) (Session, error) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("enable bluetooth adapter: %w", err)
	}

	session := &bleSession{
		adapter: adapter,
		events:  make(chan Advertisement, 16),
		failed:  make(chan error, 1),
	}

	go func() {
		err := adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			if result.LocalName() != s.device {
				return
			}
			for _, element := range result.ManufacturerData() {
				if element.CompanyID != s.companyID {
					continue
				}
				payload := append([]byte(nil), element.Data...)
				advertisement := Advertisement{
					Device:  result.Address.String(),
					Payload: payload,
					RSSI:    result.RSSI,
				}
				// Drop when the reader is behind; the next broadcast
				// supersedes this one anyway.
				select {
				case session.events <- advertisement:
				default:
				}
			}
		})
		if err == nil {
			err = ErrSessionClosed
		}
		session.failed <- err
	}()

	return session, nil
}

type bleSession struct {
	adapter *bluetooth.Adapter
	events  chan Advertisement
	failed  chan error
}

func (session *bleSession) Next(ctx context.Context) (Advertisement, error) {
	select {
	case advertisement := <-session.events:
		return advertisement, nil
	case err := <-session.failed:
		return Advertisement{}, err
	case <-ctx.Done():
		return Advertisement{}, ctx.Err()
	}
}

func (session *bleSession) Close() error {
	return session.adapter.StopScan()
}
