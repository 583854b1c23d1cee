package models

import "aidtrace/pkg/domain"

// PlatformStats are the platform-wide running totals. Every counter only grows.
type PlatformStats struct {
	TotalAssets    uint64 `json:"total_assets"`
	TotalAllocated uint64 `json:"total_allocated"`
	TotalReleased  uint64 `json:"total_released"`
	TotalRefunded  uint64 `json:"total_refunded"`
}

// InTransit is allocated value not yet released to recipients. Refunds do
// not reduce it; see Escrowed.
func (s PlatformStats) InTransit() uint64 {
	return s.TotalAllocated - s.TotalReleased
}

// Escrowed is the value the custodian still holds across all assets.
func (s PlatformStats) Escrowed() uint64 {
	return s.TotalAllocated - s.TotalReleased - s.TotalRefunded
}

func (s *PlatformStats) RecordCreated(funding uint64) error {
	allocated, err := AddAmount(s.TotalAllocated, funding)
	if err != nil {
		return err
	}
	assets, err := AddAmount(s.TotalAssets, 1)
	if err != nil {
		return err
	}
	s.TotalAllocated, s.TotalAssets = allocated, assets
	return nil
}

func (s *PlatformStats) RecordReleased(amount uint64) error {
	v, err := AddAmount(s.TotalReleased, amount)
	if err != nil {
		return err
	}
	s.TotalReleased = v
	return nil
}

func (s *PlatformStats) RecordRefunded(amount uint64) error {
	v, err := AddAmount(s.TotalRefunded, amount)
	if err != nil {
		return err
	}
	s.TotalRefunded = v
	return nil
}

// Participant aggregates what one identity has put in and taken out.
type Participant struct {
	Identity     domain.Identity `json:"identity"`
	Donated      uint64          `json:"donated"`
	Refunded     uint64          `json:"refunded"`
	Received     uint64          `json:"received"`
	AssetsFunded uint64          `json:"assets_funded"`
}

func (p *Participant) RecordDonation(amount uint64) error {
	donated, err := AddAmount(p.Donated, amount)
	if err != nil {
		return err
	}
	funded, err := AddAmount(p.AssetsFunded, 1)
	if err != nil {
		return err
	}
	p.Donated, p.AssetsFunded = donated, funded
	return nil
}

func (p *Participant) RecordReceived(amount uint64) error {
	v, err := AddAmount(p.Received, amount)
	if err != nil {
		return err
	}
	p.Received = v
	return nil
}

func (p *Participant) RecordRefund(amount uint64) error {
	v, err := AddAmount(p.Refunded, amount)
	if err != nil {
		return err
	}
	p.Refunded = v
	return nil
}
