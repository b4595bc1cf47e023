package reporting

import "sync/atomic"

// PaymentObserver receives approve-flow notifications.
type PaymentObserver interface {
	WillLaunchChallenge()
	DidFinishChallenge()
	DidSucceed(result CardResult)
	DidFail(err error)
	DidCancel()
}

// VaultObserver receives vault-flow results.
type VaultObserver interface {
	DidSucceedVault(result CardVaultResult)
	DidFailVault(err error)
}

type paymentRef struct{ o PaymentObserver }
type vaultRef struct{ o VaultObserver }

// ObserverSet holds the optional observers of a client. It is safe for
// concurrent use; the observers may be replaced while flows are running.
type ObserverSet struct {
	payment atomic.Pointer[paymentRef]
	vault   atomic.Pointer[vaultRef]
}

// SetPayment installs o. nil removes the observer.
func (s *ObserverSet) SetPayment(o PaymentObserver) {
	if o == nil {
		s.payment.Store(nil)
		return
	}
	s.payment.Store(&paymentRef{o: o})
}

// SetVault installs o. nil removes the observer.
func (s *ObserverSet) SetVault(o VaultObserver) {
	if o == nil {
		s.vault.Store(nil)
		return
	}
	s.vault.Store(&vaultRef{o: o})
}

// Payment returns the current payment observer or nil.
func (s *ObserverSet) Payment() PaymentObserver {
	if ref := s.payment.Load(); ref != nil {
		return ref.o
	}
	return nil
}

// Vault returns the current vault observer or nil.
func (s *ObserverSet) Vault() VaultObserver {
	if ref := s.vault.Load(); ref != nil {
		return ref.o
	}
	return nil
}
