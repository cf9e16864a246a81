// Package address keeps the single delivery address of a profile.
package address

import (
	"context"
	"errors"
	"sync"

	"github.com/angelmondragon/gemcart/internal/syncstore"
	"github.com/angelmondragon/gemcart/pkg/kv"
	"github.com/angelmondragon/gemcart/pkg/logger"
	"github.com/angelmondragon/gemcart/pkg/types"
	"github.com/angelmondragon/gemcart/pkg/validation"
)

const Key = "delivery_address"

// Patch overrides the non-nil fields of the stored address.
type Patch struct {
	FullName   *string `json:"fullName,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Email      *string `json:"email,omitempty"`
	Line1      *string `json:"line1,omitempty"`
	Line2      *string `json:"line2,omitempty"`
	Landmark   *string `json:"landmark,omitempty"`
	City       *string `json:"city,omitempty"`
	State      *string `json:"state,omitempty"`
	PostalCode *string `json:"postalCode,omitempty"`
	Country    *string `json:"country,omitempty"`
}

func (p Patch) apply(a types.DeliveryAddress) types.DeliveryAddress {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&a.FullName, p.FullName)
	set(&a.Phone, p.Phone)
	set(&a.Email, p.Email)
	set(&a.Line1, p.Line1)
	set(&a.City, p.City)
	set(&a.State, p.State)
	set(&a.PostalCode, p.PostalCode)
	set(&a.Country, p.Country)
	if p.Line2 != nil {
		a.Line2 = p.Line2
	}
	if p.Landmark != nil {
		a.Landmark = p.Landmark
	}
	return a
}

type Service interface {
	Get(ctx context.Context) (types.DeliveryAddress, bool)
	Save(ctx context.Context, addr types.DeliveryAddress) (types.DeliveryAddress, error)
	Update(ctx context.Context, patch Patch) (types.DeliveryAddress, error)
	Clear(ctx context.Context)
	Subscribe(fn syncstore.Listener) func()
}

type service struct {
	adapter  *kv.Adapter
	log      *logger.Logger
	mu       sync.Mutex
	notifier *syncstore.Notifier
}

func NewService(adapter *kv.Adapter) Service {
	return &service{
		adapter:  adapter,
		log:      adapter.Logger(),
		notifier: syncstore.NewNotifier(nil, nil),
	}
}

func validStored(a types.DeliveryAddress) error {
	if !validation.Valid(a) {
		return errors.New("stored address is incomplete")
	}
	return nil
}

// Get returns the stored address. An incomplete or corrupt record reads as
// absent.
func (s *service) Get(ctx context.Context) (types.DeliveryAddress, bool) {
	return kv.Read(ctx, s.adapter, Key, validStored)
}

// Save replaces the address after validating it. Nothing is written when
// validation fails.
func (s *service) Save(ctx context.Context, addr types.DeliveryAddress) (types.DeliveryAddress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, addr.Normalize())
}

// Update merges patch onto the stored address field by field and validates
// the result. Without a stored address the patch must be complete on its
// own.
func (s *service) Update(ctx context.Context, patch Patch) (types.DeliveryAddress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, _ := s.Get(ctx)
	return s.save(ctx, patch.apply(current).Normalize())
}

func (s *service) save(ctx context.Context, addr types.DeliveryAddress) (types.DeliveryAddress, error) {
	if err := validation.Struct(addr); err != nil {
		return types.DeliveryAddress{}, err
	}
	if !s.adapter.Available() {
		return addr, nil
	}
	current, ok := s.Get(ctx)
	if err := s.adapter.Write(ctx, Key, addr); err != nil {
		ctx = s.log.WithFields(ctx, map[string]any{"store": "address", "key": Key})
		s.log.Error(ctx, "storage.write_failed", err)
	}
	if !ok || !current.Equal(addr) {
		s.notifier.Emit()
	}
	return addr, nil
}

// Clear forgets the address.
func (s *service) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Get(ctx); !ok {
		return
	}
	if err := s.adapter.Remove(ctx, Key); err != nil {
		ctx = s.log.WithFields(ctx, map[string]any{"store": "address", "key": Key})
		s.log.Error(ctx, "storage.write_failed", err)
	}
	s.notifier.Emit()
}

func (s *service) Subscribe(fn syncstore.Listener) func() {
	return s.notifier.Subscribe(fn)
}
